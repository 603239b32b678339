package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"outputrocks-nodes/internal/common/aws"
	"outputrocks-nodes/internal/common/errors"
	"outputrocks-nodes/internal/common/metrics"
	"outputrocks-nodes/internal/credentials"
	"outputrocks-nodes/internal/host"
	"outputrocks-nodes/internal/nodes/trigger"
	"outputrocks-nodes/internal/waiting"

	"github.com/go-chi/chi/v5"
)

const (
	msgWorkflowStarted = "Workflow was started"
	msgNotRegistered   = "The requested webhook is not registered."
)

// Deliver runs the trigger node registered for the path and starts its
// process with the emitted items.
func (s *Server) Deliver(w http.ResponseWriter, r *http.Request) {
	path := normalizePath(chi.URLParam(r, "*"))
	t, ok := s.triggers[path]
	if !ok || s.deps.TriggerNode == nil {
		writeText(w, http.StatusNotFound, msgNotRegistered)
		return
	}

	fns := host.NewWebhookContext(host.WebhookOptions{
		Request:        r,
		ResponseWriter: w,
		Params:         map[string]string{"path": path},
		Credentials:    s.deps.Credentials,
		CredentialIDs:  map[string]string{credentials.TriggerAPIType: t.CredentialID},
	})

	resp, err := s.deps.TriggerNode.Webhook(r.Context(), fns)
	if err != nil {
		s.fail(w, "trigger node failed", err)
		return
	}
	if resp.NoWebhookResponse {
		return
	}

	items := firstItems(resp)
	log := s.logger.WithFields(map[string]interface{}{"triggerPath": path, "processId": t.ProcessID})

	var instanceKey int64
	if s.deps.Engine != nil && t.ProcessID != "" {
		instanceKey, err = s.deps.Engine.StartProcess(r.Context(), t.ProcessID, map[string]interface{}{"items": items})
		if err != nil {
			metrics.ProcessStarts.WithLabelValues(t.ProcessID, "failed").Inc()
			s.fail(w, "process start failed", err)
			return
		}
		metrics.ProcessStarts.WithLabelValues(t.ProcessID, "started").Inc()
		log.Info("process started", map[string]interface{}{"processInstanceKey": instanceKey})
	}

	if s.deps.Notifier != nil {
		s.notify(r, path, t, instanceKey, items)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": msgWorkflowStarted})
}

func (s *Server) notify(r *http.Request, path string, t Trigger, instanceKey int64, items []host.Item) {
	delivery := aws.Delivery{
		TriggerPath:        path,
		ProcessID:          t.ProcessID,
		ProcessInstanceKey: instanceKey,
	}
	if len(items) > 0 {
		if doc, ok := items[0].Binary[trigger.BinaryPropertyName]; ok {
			delivery.FileName = doc.FileName
			delivery.MimeType = doc.MimeType
			delivery.FileSize = doc.FileSize
		}
	}

	id, err := s.deps.Notifier.NotifyDelivered(r.Context(), delivery)
	if err != nil {
		s.logger.Warn("delivery notification failed", map[string]interface{}{"triggerPath": path, "error": err.Error()})
		return
	}
	s.logger.Debug("delivery notification published", map[string]interface{}{"messageId": id})
}

// Resume hands the callback of a parked execution to the engine. A token is
// accepted once; unknown and expired tokens are answered 404.
func (s *Server) Resume(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if s.deps.Waiting == nil || s.deps.ResumeNode == nil {
		writeText(w, http.StatusNotFound, msgNotRegistered)
		return
	}

	pending, err := s.deps.Waiting.Take(r.Context(), token)
	if err != nil {
		if stderrors.Is(err, waiting.ErrNotWaiting) {
			metrics.ResumeCallbacks.WithLabelValues("unknown").Inc()
			writeText(w, http.StatusNotFound, msgNotRegistered)
			return
		}
		s.fail(w, "waiting store lookup failed", err)
		return
	}

	fns := host.NewWebhookContext(host.WebhookOptions{
		Request:        r,
		ResponseWriter: w,
		Params:         map[string]string{"token": token},
	})
	resp, err := s.deps.ResumeNode.Webhook(r.Context(), fns)
	if err != nil {
		s.restore(r, *pending)
		s.fail(w, "resume node failed", err)
		return
	}

	log := s.logger.WithFields(map[string]interface{}{
		"node":               pending.NodeName,
		"processInstanceKey": pending.ProcessInstanceKey,
	})

	if s.deps.Engine != nil {
		ttl := time.Until(pending.WaitTill)
		if pending.WaitTill.IsZero() || ttl <= 0 {
			ttl = time.Minute
		}
		err := s.deps.Engine.PublishResume(r.Context(), s.deps.MessageName, token, ttl, map[string]interface{}{
			"items": firstItems(resp),
		})
		if err != nil {
			s.restore(r, *pending)
			metrics.ResumeCallbacks.WithLabelValues("failed").Inc()
			s.fail(w, "resume message failed", err)
			return
		}
	}

	metrics.ResumeCallbacks.WithLabelValues("resumed").Inc()
	log.Info("execution resumed", nil)
	w.WriteHeader(http.StatusOK)
}

// Status reports whether a resume token still waits, without consuming it.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	if s.deps.Waiting == nil {
		writeText(w, http.StatusNotFound, msgNotRegistered)
		return
	}

	pending, err := s.deps.Waiting.Get(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		if stderrors.Is(err, waiting.ErrNotWaiting) {
			writeText(w, http.StatusNotFound, msgNotRegistered)
			return
		}
		s.fail(w, "waiting store lookup failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"waiting":  true,
		"node":     pending.NodeName,
		"waitTill": pending.WaitTill.UTC().Format(time.RFC3339),
	})
}

// restore parks the execution again so the caller can retry.
func (s *Server) restore(r *http.Request, pending waiting.PendingExecution) {
	if err := s.deps.Waiting.Park(r.Context(), pending); err != nil {
		s.logger.Error("failed to restore parked execution", map[string]interface{}{
			"token": pending.Token,
			"error": err.Error(),
		})
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	stdErr := errors.Normalize(err)
	status := http.StatusInternalServerError
	if stdErr.Retryable {
		status = http.StatusServiceUnavailable
	}
	s.logger.Error(msg, map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"error":     err.Error(),
	})
	writeJSON(w, status, map[string]interface{}{
		"code":    string(stdErr.Code),
		"message": stdErr.Message,
	})
}

func firstItems(resp host.WebhookResponse) []host.Item {
	if len(resp.WorkflowData) == 0 {
		return []host.Item{}
	}
	return resp.WorkflowData[0]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"message":"encoding failed"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
