package handlers

import (
	"net/http"

	"repair-marketplace/internal/apperror"
	"repair-marketplace/internal/logger"
)

var statusByKind = map[apperror.Kind]int{
	apperror.KindNotFound:   http.StatusNotFound,
	apperror.KindValidation: http.StatusBadRequest,
	apperror.KindConflict:   http.StatusConflict,
}

// writeServiceError отдаёт клиенту сообщение типизированной ошибки.
// Прочие ошибки логируются, клиент получает только internalMessage.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	if status, ok := statusByKind[apperror.KindOf(err)]; ok {
		writeErrorResponse(w, status, err.Error())
		return
	}

	if log != nil {
		log.WithError(err).Error(internalMessage)
	}
	writeErrorResponse(w, http.StatusInternalServerError, internalMessage)
}
