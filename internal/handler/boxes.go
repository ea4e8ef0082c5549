package handler

import (
	"net/http"

	"groundtruth/internal/dto"
	"groundtruth/internal/logger"
	"groundtruth/internal/service/session"
)

// AddManualBoxHandler stores a box the reviewer drew on an image.
func AddManualBoxHandler(svc *session.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, imageID := r.PathValue("session"), r.PathValue("image")
		if err := checkSessionID(sessionID); err != nil {
			writeError(w, logger, err)
			return
		}
		if err := checkImageID(imageID); err != nil {
			writeError(w, logger, err)
			return
		}

		var req dto.ManualBoxRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, logger, err)
			return
		}
		if err := checkManualBoxRequest(&req); err != nil {
			writeError(w, logger, err)
			return
		}

		resp, err := svc.AddManualBox(sessionID, imageID, req)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, resp)
	}
}

// DeleteBoxHandler removes one box from an image.
func DeleteBoxHandler(svc *session.Service, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, imageID, boxID := r.PathValue("session"), r.PathValue("image"), r.PathValue("box")
		if err := checkSessionID(sessionID); err != nil {
			writeError(w, logger, err)
			return
		}
		if err := checkImageID(imageID); err != nil {
			writeError(w, logger, err)
			return
		}
		if err := checkBoxID(boxID); err != nil {
			writeError(w, logger, err)
			return
		}

		resp, err := svc.DeleteBox(sessionID, imageID, boxID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}
