package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamnsolar/field_capture/agent"
	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/draftstore"
	"github.com/kamnsolar/field_capture/geo"
	"github.com/kamnsolar/field_capture/session"
	"github.com/kamnsolar/field_capture/surveyapi"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	store, err := draftstore.OpenFromEnv(sigCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "draftstore"}).Fatal(err)
	}
	client := surveyapi.NewClientFromEnv()
	sess := session.New(store, client, geo.NewCapturerFromEnv(), session.PhotoOptionsFromEnv())
	view := sess.Restore(sigCtx)
	logger.WithFields(logrus.Fields{
		"field":       "session",
		"state":       view.State,
		"customer_id": view.CustomerId,
		"store":       store.Backend().Name(),
		"api":         client.BaseURL(),
	}).Info("draft restored")

	srv := &http.Server{
		Addr:              ":" + config.AgentPort(),
		Handler:           agent.NewRouter(sess, agent.OptionsFromEnv()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"field": "server", "addr": srv.Addr}).Info("field agent listening")
		serverErrCh <- srv.ListenAndServe()
	}()

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}
