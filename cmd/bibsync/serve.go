package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tuwlib/bibsync/internal/config"
	"github.com/tuwlib/bibsync/internal/oaipmh"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address for the OAI-PMH endpoint")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve article metadata over OAI-PMH",
	Long: `Serve the OAI-PMH endpoint for all configured journals at
/api/oai/{journal}. Responses are always HTTP 200 text/xml; protocol
errors are reported in the response body per the OAI-PMH convention.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	handler := oaipmh.NewHandler(cfg, s)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/oai/{journal}", func(w http.ResponseWriter, r *http.Request) {
		serveOAI(w, r, cfg, handler, log)
	})

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", serveAddr).Info("oai-pmh endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func serveOAI(w http.ResponseWriter, r *http.Request, cfg *config.Config, handler *oaipmh.Handler, log *logrus.Logger) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	journalCode := r.PathValue("journal")
	if _, err := cfg.JournalFor(journalCode); err != nil {
		http.NotFound(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	body, err := handler.Handle(journalCode, requestBaseURL(r), r.Form)
	if err != nil {
		log.WithError(err).Error("oai request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.WithFields(logrus.Fields{
		"journal": journalCode,
		"verb":    r.Form.Get("verb"),
	}).Info("oai request served")

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// requestBaseURL reconstructs the request URL without query parameters, as
// echoed in the OAI <request> element.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}
