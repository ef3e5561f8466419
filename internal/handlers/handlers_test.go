package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/icusim/icu-sim/internal/scheduler"
	"github.com/icusim/icu-sim/internal/services"
	"github.com/icusim/icu-sim/internal/storage"
	"github.com/icusim/icu-sim/pkg/scenario"
	"github.com/icusim/icu-sim/pkg/session"
)

type testEnv struct {
	router  http.Handler
	storage *storage.MockStorage
	nlg     *services.MockNLG
	sched   *scheduler.Scheduler
}

func testScenario() *scenario.Scenario {
	return &scenario.Scenario{
		ID:         "cardiogenic-shock-01",
		Title:      "Post-MI Cardiogenic Shock",
		Difficulty: "intermediate",
		Author:     "icu-sim",
		Opening: scenario.Opening{
			Caller:  "Night shift nurse",
			Message: "Doctor, bed 3 is hypotensive, can you come see him?",
		},
		Patient: scenario.Patient{Age: 68, Gender: "M", Bed: "ICU-3"},
		InitialVitals: scenario.VitalSigns{
			HR: 118, BPSystolic: 82, BPDiastolic: 54, RR: 26, SpO2: 91, Temperature: 36.4,
		},
		CurrentStatus: scenario.CurrentStatus{Consciousness: "drowsy", Appearance: "pale"},
		HistoryContext: scenario.HistoryContext{
			Description: "68M day 2 post anterior STEMI, now hypotensive and oliguric.",
			KeyPoints:   []string{"No fever"},
		},
		PhysicalExam: scenario.PhysicalExam{
			"cardiac-jvp":      "JVP elevated at 10cm",
			"extremities-temp": "Cold and clammy",
		},
		LabPanel: scenario.LabPanel{
			"biochemistry": {"lactate": 4.2},
			"infection":    {"procalcitonin": 0.12, "blood-culture": "No growth at 48 hours"},
		},
		Imaging: scenario.Imaging{
			"plax": {Finding: "Severely reduced LV systolic function"},
		},
		Diagnosis: scenario.Diagnosis{
			Primary:      "cardiogenic_shock",
			Differential: []string{"septic_shock"},
		},
	}
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := storage.NewMockStorage()
	store.AddScenario(testScenario())

	nlg := services.NewMockNLG()
	sched := scheduler.New(log)
	t.Cleanup(sched.Close)

	router := NewRouter(Deps{
		Storage:   store,
		NLG:       nlg,
		Scheduler: sched,
		Delays:    scheduler.Delays{Lab: 20 * time.Millisecond, Culture: 200 * time.Millisecond},
		Logger:    log,
	})

	return &testEnv{router: router, storage: store, nlg: nlg, sched: sched}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// runningSession creates and starts a session directly in storage.
func (e *testEnv) runningSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New("cardiogenic-shock-01")
	require.NoError(t, s.Seed(testScenario()))
	require.NoError(t, s.Start(testScenario()))
	require.NoError(t, e.storage.SaveSession(context.Background(), s))
	return s
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
