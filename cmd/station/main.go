package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/farellandr/spoticket-checkin/config"
	"github.com/farellandr/spoticket-checkin/internal/station"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logrus.Info("No .env file found, using environment as-is")
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	stationID := getEnv("STATION_ID", "station-1")
	eventID := os.Getenv("EVENT_ID")
	serverURL := getEnv("SERVER_URL", "http://localhost:8080")
	dbPath := getEnv("STATION_DB", "station.db")

	if eventID == "" {
		log.Fatal("EVENT_ID is required")
	}

	token := os.Getenv("STATION_TOKEN")
	if token == "" {
		var err error
		token, err = login(serverURL, os.Getenv("STATION_EMAIL"), os.Getenv("STATION_PASSWORD"))
		if err != nil {
			log.Fatalf("login failed: %v", err)
		}
	}

	cfg := config.LoadCheckInConfig()
	logEntry := log.WithField("station_id", stationID)

	store, err := station.OpenSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("open station store: %v", err)
	}

	client := station.NewClient(serverURL, token)
	offline := station.NewOfflineValidator(store, stationID, cfg.SnapshotMaxAge, logEntry)
	pipeline := station.NewPipeline()
	machine := station.NewMachine(
		pipeline, client, offline,
		&station.TerminalRenderer{W: os.Stdout},
		eventID, cfg.ResultDismissAfter, logEntry,
	)
	reconciler := station.NewReconciler(store, client, cfg.Retry, cfg.OutboxMaxRetries, logEntry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Operator console: plain stdin lines are scan candidates, "/"-prefixed
	// lines are commands (/dismiss, /reset, /override <id> [note]).
	source := &station.ConsoleSource{
		R:       os.Stdin,
		Control: machine,
		Offline: offline,
		EventID: eventID,
		Log:     logEntry,
	}
	go func() {
		if err := source.Run(ctx, pipeline); err != nil && ctx.Err() == nil {
			logEntry.WithError(err).Error("scan source stopped")
		}
	}()

	// Refresh the snapshot whenever the machine reports a healthy online
	// round trip, at most once a minute.
	go func() {
		var last time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-machine.RefreshRequests():
				if time.Since(last) < time.Minute {
					continue
				}
				if err := refreshSnapshot(ctx, client, offline, eventID); err != nil {
					logEntry.WithError(err).Warn("snapshot refresh failed")
					continue
				}
				last = time.Now()
			}
		}
	}()

	// Drain the outbox and pull a fresh snapshot on every reconnect.
	monitor := station.NewMonitor(client, 5*time.Second, logEntry)
	go func() {
		_ = monitor.Run(ctx, func(ctx context.Context) {
			if err := reconciler.Drain(ctx); err != nil {
				logEntry.WithError(err).Warn("outbox drain interrupted")
			}
			if err := refreshSnapshot(ctx, client, offline, eventID); err != nil {
				logEntry.WithError(err).Warn("snapshot refresh failed")
			}
		})
	}()

	go func() {
		if err := machine.Run(ctx); err != nil && ctx.Err() == nil {
			logEntry.WithError(err).Error("station loop stopped")
		}
	}()

	logEntry.WithField("event_id", eventID).Info("station running, type ticket ids to scan; /dismiss, /reset, /override <id> [note]")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logEntry.Info("station shutting down")
	cancel()
}

func refreshSnapshot(ctx context.Context, client *station.Client, offline *station.OfflineValidator, eventID string) error {
	snap, err := client.Snapshot(ctx, eventID)
	if err != nil {
		return err
	}
	return offline.RefreshSnapshot(snap)
}

func login(serverURL, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", fmt.Errorf("STATION_TOKEN or STATION_EMAIL/STATION_PASSWORD required")
	}

	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(serverURL+"/v1/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Token, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
