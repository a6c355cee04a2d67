package commerce

import (
	"strings"

	"github.com/google/uuid"
	"github.com/toysnicaragua/toysbot/internal/models"
)

// Default data served when the backend is unreachable. The store directory
// mirrors the physical branches; agent assignments are the standing fallback
// roster.

// DefaultStoreLocations returns the branch directory.
func DefaultStoreLocations() []models.StoreLocation {
	return []models.StoreLocation{
		{ID: "1", Name: "Camino de Oriente", Address: "Managua, Camino de Oriente", Hours: "9:00-19:00",
			Agents: []models.SalesAgent{{ID: "1", Name: "María López"}}},
		{ID: "2", Name: "Metrocentro", Address: "Managua, Metrocentro", Hours: "9:00-20:00",
			Agents: []models.SalesAgent{{ID: "2", Name: "Carlos Mendoza"}}},
		{ID: "3", Name: "Linda Vista", Address: "Managua, Linda Vista", Hours: "9:00-19:00",
			Agents: []models.SalesAgent{{ID: "3", Name: "Ana Torres"}}},
		{ID: "4", Name: "Plaza Inter", Address: "Managua, Plaza Inter", Hours: "9:00-19:00",
			Agents: []models.SalesAgent{{ID: "4", Name: "Luis Hernández"}}},
		{ID: "5", Name: "Galerías Santo Domingo", Address: "Managua, Galerías Santo Domingo", Hours: "10:00-20:00",
			Agents: []models.SalesAgent{{ID: "5", Name: "Sofía Ramírez"}}},
		{ID: "6", Name: "Plaza España", Address: "Managua, Plaza España", Hours: "9:00-19:00",
			Agents: []models.SalesAgent{{ID: "6", Name: "Pedro Castillo"}}},
		{ID: "7", Name: "Centro Comercial Managua", Address: "Managua, Centro Comercial Managua", Hours: "9:00-19:00",
			Agents: []models.SalesAgent{{ID: "7", Name: "Lucía Gómez"}}},
		{ID: "8", Name: "Sucursal Central", Address: "Managua, Sucursal Central", Hours: "8:00-20:00",
			Agents: []models.SalesAgent{{ID: "10", Name: "Jorge Silva"}}},
	}
}

// DefaultPaymentOptions returns the payment methods accepted in every branch.
func DefaultPaymentOptions() []models.PaymentOption {
	return []models.PaymentOption{
		{Name: "Efectivo", Description: "Pago en efectivo en tienda"},
		{Name: "Tarjeta", Description: "Tarjeta de crédito o débito"},
		{Name: "Transferencia", Description: "Transferencia bancaria"},
	}
}

// DefaultNearestStore returns the central branch and its agent, used when the
// nearest-store lookup is unavailable.
func DefaultNearestStore() *models.NearestStore {
	return &models.NearestStore{
		Store: models.StoreLocation{ID: "8", Name: "Sucursal Central", Address: "Managua, Sucursal Central", Hours: "8:00-20:00"},
		Agent: models.SalesAgent{ID: "10", Name: "Jorge Silva"},
	}
}

// LocalReservation builds a reservation with a locally generated code when
// the backend cannot issue one. Pickup validity matches the backend default.
func LocalReservation(productID, productName string) *models.Reservation {
	code := strings.ToUpper(uuid.NewString()[:8])
	return &models.Reservation{
		Code:        "RES-" + code,
		ProductID:   productID,
		ProductName: productName,
		ValidHours:  48,
	}
}

// LocalTicket builds a handover ticket with a locally generated id when the
// backend cannot create one. The handover still proceeds; the CRM record is
// lost but the user reaches an agent.
func LocalTicket(reason, summary string) *models.HandoverTicket {
	return &models.HandoverTicket{
		ID:      "TKT-" + strings.ToUpper(uuid.NewString()[:8]),
		Reason:  reason,
		Summary: summary,
	}
}
