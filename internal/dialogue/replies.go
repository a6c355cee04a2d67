package dialogue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// Reply builders. All user-facing text is a deterministic Spanish template;
// nothing here is generated.

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func generalGreeting() string {
	return "¡Hola! 👋 Soy el asistente virtual de Juguetes Nicaragua.\n" +
		"Antes de empezar, ¿cómo te llamas?"
}

func personalGreeting(name string) string {
	return fmt.Sprintf("¡Mucho gusto, %s! 😊", name)
}

func generalMenu() string {
	return "¿En qué te puedo ayudar hoy?\n\n" +
		"1️⃣ Consultar el precio de un producto\n" +
		"2️⃣ Buscar juguetes\n" +
		"3️⃣ Ver promociones\n" +
		"4️⃣ Nuestras tiendas\n" +
		"5️⃣ Comprar en línea\n" +
		"6️⃣ Búsqueda avanzada\n" +
		"7️⃣ Hablar con un vendedor\n\n" +
		"Responde con el número de la opción."
}

func adGreeting(productName string) string {
	if productName == "" {
		return "¡Hola! 👋 Gracias por tu interés en nuestros juguetes."
	}
	return fmt.Sprintf("¡Hola! 👋 Vi que te interesa *%s*. ¡Excelente elección!", productName)
}

func adMenu(productName string) string {
	name := productName
	if name == "" {
		name = "este producto"
	}
	return fmt.Sprintf("¿Qué te gustaría saber sobre %s?\n\n"+
		"1️⃣ Precio\n"+
		"2️⃣ Disponibilidad\n"+
		"3️⃣ Descripción\n"+
		"4️⃣ Otras opciones\n\n"+
		"Responde con el número de la opción.", name)
}

func invalidOption(max int) string {
	return fmt.Sprintf("No reconocí esa opción. 🙈 Responde con un número del 1 al %d.", max)
}

func outOfRange(max int) string {
	return fmt.Sprintf("Ese número no está en la lista. Elige una opción del 1 al %d.", max)
}

func apologyNoData() string {
	return "Lo siento, en este momento no puedo consultar esa información. 🙏 Intenta de nuevo en unos minutos o escribe *menú* para ver otras opciones."
}

func priceInquiryPrompt() string {
	return "¿Qué producto o categoría te interesa? Por ejemplo: _LEGO_, _muñecas_, _carros_..."
}

func productSearchPrompt() string {
	return "Cuéntame qué estás buscando y te muestro opciones. 🧸"
}

func advancedSearchPrompt() string {
	return "Describe lo que buscas y armo la búsqueda por ti. Por ejemplo:\n" +
		"_\"Para 3-5 años, niña, educativos, LEGO, menos de C$300\"_"
}

func noFilterRecognized() string {
	return "No logré identificar filtros en tu mensaje. 🤔 Prueba indicando edad, marca, categoría o precio, por ejemplo:\n" +
		"_\"Para 7 años, carros, hasta C$500\"_"
}

func resultsList(products []models.Product) string {
	var b strings.Builder
	b.WriteString("Esto fue lo que encontré:\n\n")
	for i, p := range products {
		fmt.Fprintf(&b, "%d️⃣ %s — C$%.2f\n", i+1, p.Name, p.Price)
	}
	b.WriteString("\nResponde con el número del producto que te interesa.")
	return b.String()
}

func noResults() string {
	return "No encontré productos con esos criterios. 😔"
}

func suggestionsList(suggestions []models.SearchSuggestion) string {
	var b strings.Builder
	b.WriteString("Quizás te interese buscar:\n")
	for _, s := range suggestions {
		fmt.Fprintf(&b, "• %s\n", s.Label)
	}
	b.WriteString("\nEscribe una nueva búsqueda o *menú* para volver al inicio.")
	return b.String()
}

func productDetail(d *models.ProductDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n💰 Precio: C$%.2f\n", d.Name, d.Price)
	if d.Stock > 0 {
		fmt.Fprintf(&b, "📦 Disponibles: %d\n", d.Stock)
	} else {
		b.WriteString("📦 Agotado por el momento\n")
	}
	if d.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", d.Description)
	}
	for _, f := range d.Features {
		fmt.Fprintf(&b, "✔️ %s\n", f)
	}
	if d.Upsell != nil {
		fmt.Fprintf(&b, "\n💡 También te puede gustar: *%s* (C$%.2f)\n", d.Upsell.Name, d.Upsell.Price)
	}
	return b.String()
}

func productActions() string {
	return "¿Qué deseas hacer?\n\n" +
		"1️⃣ Comprar\n" +
		"2️⃣ Reservar en tienda\n" +
		"3️⃣ Ver más productos\n" +
		"4️⃣ Buscar de nuevo"
}

func promotionsList(promos []models.Promotion, withCodes bool) string {
	var b strings.Builder
	b.WriteString("🎉 Promociones activas:\n\n")
	for _, p := range promos {
		fmt.Fprintf(&b, "• *%s*", p.Title)
		if p.Discount > 0 {
			fmt.Fprintf(&b, " (%.0f%% de descuento)", p.Discount)
		}
		if withCodes && p.Code != "" {
			fmt.Fprintf(&b, " — código *%s*", p.Code)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func storesList(stores []models.StoreLocation) string {
	var b strings.Builder
	b.WriteString("🏬 Nuestras tiendas:\n\n")
	for i, s := range stores {
		fmt.Fprintf(&b, "%d️⃣ %s", i+1, s.Name)
		if s.Hours != "" {
			fmt.Fprintf(&b, " (%s)", s.Hours)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func webLinkReply(link string) string {
	return fmt.Sprintf("🛒 Puedes comprar en línea aquí:\n%s", link)
}

func stockByStore(productName string, stock []models.StoreStock) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Disponibilidad de *%s* por tienda:\n\n", productName)
	total := 0
	for _, s := range stock {
		fmt.Fprintf(&b, "• %s: %d\n", s.StoreName, s.Quantity)
		total += s.Quantity
	}
	if total == 0 {
		b.WriteString("\nPor el momento está agotado en todas las tiendas. 😔")
	}
	return b.String()
}

func alternativesIntro() string {
	return "Pero tengo estas alternativas similares:"
}

func adDetailActions() string {
	return "¿Te gustaría dar el siguiente paso?\n\n" +
		"Escribe *comprar*, *reservar* o *volver* para regresar al menú del producto."
}

func reservationConfirmed(r *models.Reservation) string {
	msg := fmt.Sprintf("✅ ¡Listo! Reservé *%s* para ti.\nTu código de reserva es *%s*.", r.ProductName, r.Code)
	if r.ValidHours > 0 {
		msg += fmt.Sprintf("\nPuedes recogerlo en tienda dentro de las próximas %d horas.", r.ValidHours)
	}
	return msg
}

func quotationReply(q *models.Quotation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📄 Cotización para *%s*:\n", q.ProductName)
	fmt.Fprintf(&b, "Cantidad: %d\nTotal: C$%.2f\n", q.Quantity, q.Total)
	if q.PDFURL != "" {
		fmt.Fprintf(&b, "PDF: %s\n", q.PDFURL)
	}
	b.WriteString("\n¿Deseas proceder con la compra? (sí/no)")
	return b.String()
}

func askCustomerName() string {
	return "Perfecto. Para preparar tu pedido necesito algunos datos. 📋\n¿A nombre de quién va la compra?"
}

func askCustomerPhone() string {
	return "¿A qué número de teléfono te podemos contactar?"
}

func askPreferredStore(stores []models.StoreLocation) string {
	return "¿En cuál tienda prefieres recoger tu pedido?\n\n" + storesList(stores) + "\nResponde con el número."
}

func askPaymentMethod(options []models.PaymentOption) string {
	var b strings.Builder
	b.WriteString("¿Cómo deseas pagar?\n\n")
	for i, o := range options {
		fmt.Fprintf(&b, "%d️⃣ %s", i+1, o.Name)
		if o.Description != "" {
			fmt.Fprintf(&b, " — %s", o.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nResponde con el número.")
	return b.String()
}

func orderSummary(info models.CustomerInfo, q *models.Quotation) string {
	var b strings.Builder
	b.WriteString("Revisa tu pedido:\n\n")
	if q != nil {
		fmt.Fprintf(&b, "🧸 %s — C$%.2f\n", q.ProductName, q.Total)
	}
	fmt.Fprintf(&b, "👤 %s\n📞 %s\n🏬 %s\n💳 %s\n", info.Name, info.Phone, info.Store, info.PaymentMethod)
	b.WriteString("\n¿Confirmas la compra? (sí/no)")
	return b.String()
}

func orderConfirmed(o *models.SaleOrder) string {
	return fmt.Sprintf("🎉 ¡Compra confirmada! Tu número de orden es *%s*.\n"+
		"Te esperamos en la tienda seleccionada para completar el pago y la entrega.", o.Reference)
}

func purchaseCancelled() string {
	return "Sin problema, cancelé el proceso de compra. Seguimos viendo el producto. 😉"
}

func escalationIntro() string {
	return "Entiendo, este tema merece atención personalizada. 🤝 Ya avisé a nuestro equipo."
}

func handoverChoicePrompt() string {
	return "¿Cómo prefieres continuar?\n\n" +
		"1️⃣ Que un vendedor te escriba por aquí\n" +
		"2️⃣ Elegir una tienda para que te atiendan"
}

func offerEscalation() string {
	return "Veo que no he logrado ayudarte bien. 😅 ¿Quieres que te atienda una persona de nuestro equipo? (sí/no)"
}

func offerTransfer() string {
	return "¿Prefieres que un vendedor te atienda directamente para resolverlo más rápido? (sí/no)"
}

func storeSelectionPrompt(stores []models.StoreLocation) string {
	return storesList(stores) + "\nResponde con el número de la tienda o escribe tu ubicación y busco la más cercana."
}

func handoverConfirmationPrompt(store models.StoreLocation, agent models.SalesAgent) string {
	return fmt.Sprintf("Te atenderá *%s* de la tienda *%s*. ¿Confirmas? (sí/no)", agent.Name, store.Name)
}

func handoverDone(agent models.SalesAgent) string {
	return fmt.Sprintf("✅ Listo. *%s* recibió tu conversación y te escribirá en breve. Puedes dejarle tu consulta por aquí.", agent.Name)
}

func agentGreeting(agent models.SalesAgent) string {
	return fmt.Sprintf("👤 *%s*: ¡Hola! Ya estoy al tanto de tu consulta, ¿en qué te ayudo?", agent.Name)
}

func agentUnavailable() string {
	return "No pude entregar tu mensaje al vendedor en este momento. 😔 Mientras tanto, ¿me ayudas calificando la atención?"
}

func askRating() string {
	return "Antes de despedirnos, ¿qué calificación le das a la atención de hoy? Responde con un número del 1 al 5. ⭐"
}

func invalidRating() string {
	return "Para calificar usa un número del 1 al 5."
}

func negativeFeedbackReply() string {
	return "Lamento que la experiencia no fuera la mejor. 😔 Te conecto con nuestro equipo para resolverlo."
}

func positiveFeedbackReply() string {
	return "¡Gracias por tu calificación! 🌟 Nos alegra haberte ayudado."
}

func clubOffer() string {
	return "🎁 ¿Te gustaría unirte a nuestro *Club de Juguetes*? Recibirás promociones exclusivas y acumulas puntos en cada compra. (sí/no)"
}

func clubWelcome() string {
	return "🎉 ¡Bienvenido al Club de Juguetes! Pronto recibirás tus primeras promociones. ¡Hasta pronto! 👋"
}

func goodbye() string {
	return "¡Gracias por escribirnos! Cuando quieras volver, aquí estaré. 👋"
}

func stillTherePrompt() string {
	return "¿Sigues ahí? 👀 Escribe *menú* para ver las opciones o cuéntame qué necesitas."
}

func transferAccepted() string {
	return "¡Perfecto! Te conecto con un vendedor. 🤝"
}

func transferDeclined() string {
	return "De acuerdo, seguimos por aquí. 😊"
}
