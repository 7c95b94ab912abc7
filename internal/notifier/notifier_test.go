package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ps "github.com/mitchellh/go-ps"

	"github.com/julianstephens/streakline/internal/constants"
	"github.com/julianstephens/streakline/internal/models"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func mockConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := userConfigDirFunc
	userConfigDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { userConfigDirFunc = old })
	return dir
}

func mockProcessLookup(t *testing.T, executable string) {
	t.Helper()
	old := findProcessFunc
	findProcessFunc = func(pid int) (ps.Process, error) {
		if executable == "" {
			return nil, nil
		}
		return &mockProcess{pid: pid, executable: executable}, nil
	}
	t.Cleanup(func() { findProcessFunc = old })
}

func TestGetTrayAppConfigDir(t *testing.T) {
	tempDir := mockConfigDir(t)

	expectedDefault := filepath.Join(tempDir, constants.TrayAppIdentifier)
	dir, err := GetTrayAppConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != expectedDefault {
		t.Errorf("expected %s, got %s", expectedDefault, dir)
	}

	if err := os.MkdirAll(expectedDefault, 0755); err != nil {
		t.Fatal(err)
	}
	customDir := "/custom/streakline/dir"
	settingsJSON := fmt.Sprintf(`{"settings": {"lockfile_dir": %q}}`, customDir)
	if err := os.WriteFile(filepath.Join(expectedDefault, "settings.json"), []byte(settingsJSON), 0644); err != nil {
		t.Fatal(err)
	}

	dir, err = GetTrayAppConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != customDir {
		t.Errorf("expected %s, got %s", customDir, dir)
	}
}

func TestFindAndValidateTrayProcess(t *testing.T) {
	lockfilePath := filepath.Join(t.TempDir(), constants.NotifierLockfileName)

	if _, _, err := findAndValidateTrayProcess(lockfilePath); err != ErrTrayNotRunning {
		t.Errorf("missing lockfile error = %v, want ErrTrayNotRunning", err)
	}

	tests := []struct {
		name       string
		content    string
		executable string
		wantErr    string
	}{
		{"two-part format", "8080|12345", "streakline-tray", "malformed"},
		{"garbage", "invalid", "streakline-tray", "malformed"},
		{"empty secret", "8080|12345|", "streakline-tray", "secret"},
		{"empty port", "|12345|s3cret", "streakline-tray", "port"},
		{"port out of range", "99999|12345|s3cret", "streakline-tray", "outside valid range"},
		{"bad pid", "8080|abc|s3cret", "streakline-tray", "process ID"},
		{"process gone", "8080|12345|s3cret", "", "not running"},
		{"wrong executable", "8080|12345|s3cret", "other-app", "is not streakline-tray"},
		{"valid", "8080|12345|s3cret", "streakline-tray", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(lockfilePath, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			mockProcessLookup(t, tt.executable)

			port, secret, err := findAndValidateTrayProcess(lockfilePath)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if port != "8080" || secret != "s3cret" {
				t.Errorf("got port=%s secret=%s", port, secret)
			}
		})
	}
}

// trayServer accepts posts carrying the test secret and records their payloads.
func trayServer(t *testing.T) (*httptest.Server, *[]WebhookPayload) {
	t.Helper()
	var received []WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("X-Streakline-Secret") != "test-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Unauthorized"))
			return
		}
		var payload WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if payload.Text == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		received = append(received, payload)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, &received
}

func serverPort(server *httptest.Server) string {
	parts := strings.Split(server.URL, ":")
	return parts[len(parts)-1]
}

func TestSendNotification(t *testing.T) {
	server, _ := trayServer(t)
	port := serverPort(server)
	n := New()
	ctx := context.Background()

	tests := []struct {
		name    string
		secret  string
		text    string
		wantErr bool
	}{
		{"success", "test-secret", "hello", false},
		{"missing secret", "", "hello", true},
		{"wrong secret", "wrong-secret", "hello", true},
		{"server error", "test-secret", "fail", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.sendNotification(ctx, port, tt.secret, WebhookPayload{Text: tt.text})
			if (err != nil) != tt.wantErr {
				t.Errorf("sendNotification() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDeliversHabitNotifications(t *testing.T) {
	server, received := trayServer(t)
	configDir := mockConfigDir(t)
	mockProcessLookup(t, "streakline-tray")

	trayDir := filepath.Join(configDir, constants.TrayAppIdentifier)
	if err := os.MkdirAll(trayDir, 0755); err != nil {
		t.Fatal(err)
	}
	lock := serverPort(server) + "|4242|test-secret"
	if err := os.WriteFile(filepath.Join(trayDir, constants.NotifierLockfileName), []byte(lock), 0600); err != nil {
		t.Fatal(err)
	}

	h := models.Habit{ID: "h1", OwnerID: "u1", IdentityStatement: "I meditate", ConsecutiveMisses: 1}
	miss := models.NewMissNotification(h, time.Now())

	n := New()
	ctx := context.Background()
	events := []models.Event{
		{Type: constants.EventHabitCreated, Payload: map[string]any{"habit_id": "h1"}},
		{Type: constants.EventHabitMissDetected, Payload: map[string]any{"message": miss.Message, "icon": miss.Icon}},
	}
	for _, e := range events {
		if err := n.Write(ctx, e); err != nil {
			t.Fatalf("Write(%s) error: %v", e.Type, err)
		}
	}

	if len(*received) != 1 {
		t.Fatalf("tray received %d notifications, want 1", len(*received))
	}
	got := (*received)[0]
	if got.Text != miss.Message || got.Icon != "bell" || got.DurationMs != constants.NotificationDurationMs {
		t.Errorf("payload = %+v", got)
	}

	if err := n.Write(ctx, models.Event{Type: constants.EventHabitStreakReset, Payload: map[string]any{}}); err == nil {
		t.Error("Write() without a message should fail")
	}
}

func TestWriteWithoutTray(t *testing.T) {
	mockConfigDir(t)

	err := New().Write(context.Background(), models.Event{
		Type:    constants.EventHabitStreakReset,
		Payload: map[string]any{"message": "Your streak has reset"},
	})
	if err != ErrTrayNotRunning {
		t.Errorf("Write() error = %v, want ErrTrayNotRunning", err)
	}
}
