package controller

import (
	"fmt"
	"strings"

	"intakebot/pkg/conversation"
	"intakebot/pkg/proposal"
	"intakebot/pkg/ticket"
)

// Canned replies. The bot's user base is Spanish-speaking; free-form replies
// (follow-up questions, drafts) come from the oracle in the conversation's
// language, while these fixed messages stay in Spanish.
const (
	replyEmptyInput = "No he recibido ningún mensaje. ¿Me cuentas tu idea?"

	replyInternalError = "Lo siento, algo ha fallado al procesar tu mensaje. Inténtalo de nuevo, tu conversación no se ha perdido."

	replyRejected = "Entendido, descarto la propuesta. Si más adelante quieres retomarla o proponer otra iniciativa, aquí estaré."

	replyUnclear = "No estoy seguro de cómo interpretar tu respuesta. ¿Confirmas la propuesta tal cual (sí), la descartamos (no), o quieres cambiar algo?"

	replySubmitFailed = "No he podido registrar el ticket en este momento. La propuesta sigue pendiente: vuelve a confirmar en un rato y lo intento de nuevo."

	replyCompleted = "Esta conversación ya está cerrada y el ticket registrado. Si quieres proponer algo más, dime \"nueva iniciativa\"."
)

func greeting(rec *conversation.Record) string {
	name := rec.Participant.DisplayName
	if name == "" {
		name = rec.Participant.UserID
	}
	return fmt.Sprintf("¡Hola %s! Soy el asistente de iniciativas digitales. Cuéntame: ¿qué problema u oportunidad tienes en mente?", name)
}

func replySubmitted(receipt *ticket.Receipt) string {
	if receipt.TicketURL != "" {
		return fmt.Sprintf("¡Listo! He registrado el ticket %s (%s). Gracias por la propuesta.", receipt.TicketID, receipt.TicketURL)
	}
	return fmt.Sprintf("¡Listo! He registrado el ticket %s. Gracias por la propuesta.", receipt.TicketID)
}

// renderProposal formats the draft for the user plus the confirmation ask.
func renderProposal(p *proposal.Proposal) string {
	var b strings.Builder
	b.WriteString("He preparado este borrador con lo que me has contado:\n\n")
	fmt.Fprintf(&b, "**%s**\n", p.Title)
	fmt.Fprintf(&b, "%s\n\n", p.ShortDescription)
	fmt.Fprintf(&b, "Descripción: %s\n", p.Description)
	fmt.Fprintf(&b, "Impacto: %s\n", p.Impact)
	if p.CoreTechnology != "" {
		fmt.Fprintf(&b, "Tecnología: %s\n", p.CoreTechnology)
	}
	if p.BusinessUnit != "" {
		fmt.Fprintf(&b, "Área: %s", p.BusinessUnit)
		if p.Project != "" {
			fmt.Fprintf(&b, " / %s", p.Project)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Prioridad: %s (dificultad %d, impacto %d)\n", p.Priority, p.Difficulty, p.ImpactScore)
	if len(p.SuggestedLabels) > 0 {
		fmt.Fprintf(&b, "Etiquetas: %s\n", strings.Join(p.SuggestedLabels, ", "))
	}
	b.WriteString("\n¿Lo registro así? Responde sí para confirmar, no para descartarlo, o dime qué cambiar.")
	return b.String()
}
