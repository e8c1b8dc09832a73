package router

// Reply texts. Spanish per the original deployment; the command vocabulary
// itself accepts both languages.
const (
	replyConsentRequest = "Soy tu registro de gastos por WhatsApp. ¿Aceptas que guarde tus mensajes para calcular resúmenes? Responde sí para continuar."
	replyConsentDecline = "No puedo continuar sin tu consentimiento. Responde sí cuando quieras empezar."
	replyConsentWelcome = "¡Listo! Ejemplo: 'add 3500 food almuerzo'. Escribe 'help' para ver los comandos."

	replyPromptAmount    = "¿Cuánto gastaste? Envía el monto (ej: 3500 o 12.50)."
	replyMalformedAmount = "No entendí el monto. Envía un número (ej: 3500 o 12.50)."
	replyPromptCategory  = "¿En qué categoría? Opciones: %s."
	replyEmptyCategory   = "Envía una categoría (ej: food) o 'x' si no aplica."
	replyPromptConfirm   = "¿Confirmas gasto de %s en '%s'? Responde sí o no."
	replyCommitted       = "Gasto registrado: %s en %s."
	replyCommitFailed    = "No pude guardar el gasto. Responde sí para reintentar o no para descartar."
	replyDiscarded       = "Gasto descartado."
	replyCancelled       = "Operación cancelada."
	replyNothingToCancel = "No hay ninguna operación en curso."

	replyStopped       = "Perfil desactivado. Escribe 'start' para reactivar."
	replyReactivated   = "Perfil reactivado."
	replyAlreadyActive = "Tu perfil ya está activo."

	replyExportReady = "Descarga tus datos: %s"

	replyFallback = "No reconocí ese comando. Escribe 'help' para ver los comandos."

	replyHelp = `Comandos:
• add — registrar un gasto paso a paso
• add 3500 food almuerzo — registrar en una línea
• report — resumen del mes por categoría
• export — descargar tus gastos del mes (CSV)
• cancel — cancelar la operación en curso
• stop / start — desactivar o reactivar tu perfil
Categorías: %s.`
)
