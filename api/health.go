package api

import (
	"bytes"
	"fmt"
	"net/http"
)

// healthzHandler mirrors the teacher's shared/prometheus healthzHandler:
// run each registered check, write 500 if any failed, and report every
// check's status in the body. feoblog has one check instead of a
// service registry: can the store still answer a version query.
func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]error{
		"store": func() error {
			_, err := s.Store.Version()
			return err
		}(),
	}

	hasError := false
	var buf bytes.Buffer
	for name, err := range checks {
		status := "OK"
		if err != nil {
			hasError = true
			status = "ERROR " + err.Error()
		}
		fmt.Fprintf(&buf, "%s: %s\n", name, status)
	}

	if hasError {
		w.WriteHeader(http.StatusInternalServerError)
		log.WithField("statuses", buf.String()).Warn("feoblog is unhealthy")
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		log.WithError(err).Error("could not write healthz body")
	}
}
