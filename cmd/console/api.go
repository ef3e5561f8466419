package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/icusim/icu-sim/pkg/chat"
	"github.com/icusim/icu-sim/pkg/debrief"
	"github.com/icusim/icu-sim/pkg/handoff"
	"github.com/icusim/icu-sim/pkg/scenario"
	"github.com/icusim/icu-sim/pkg/session"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func decodeOrError(body []byte, status, want int, v any) error {
	if status != want {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return fmt.Errorf("API returned status %d: %s", status, string(body))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}
	return json.Unmarshal(body, v)
}

func doJSON(client *http.Client, method, url string, reqBody, respBody any, wantStatus int) error {
	var buf bytes.Buffer
	if reqBody != nil {
		if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if respBody == nil {
		if resp.StatusCode != wantStatus {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil
	}
	return decodeOrError(body, resp.StatusCode, wantStatus, respBody)
}

func listScenarios(client *http.Client, baseURL string) ([]scenario.Summary, error) {
	var summaries []scenario.Summary
	if err := doJSON(client, http.MethodGet, baseURL+"/v1/scenarios", nil, &summaries, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	return summaries, nil
}

func createSession(client *http.Client, baseURL, scenarioID string) (*session.Session, error) {
	req := map[string]string{"scenario_id": scenarioID}
	var s session.Session
	if err := doJSON(client, http.MethodPost, baseURL+"/v1/sessions", req, &s, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &s, nil
}

func startSession(client *http.Client, baseURL string, id uuid.UUID) (*session.Session, error) {
	var s session.Session
	url := fmt.Sprintf("%s/v1/sessions/%s/start", baseURL, id)
	if err := doJSON(client, http.MethodPost, url, nil, &s, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return &s, nil
}

func getSession(client *http.Client, baseURL string, id uuid.UUID) (*session.Session, error) {
	var s session.Session
	url := fmt.Sprintf("%s/v1/sessions/%s", baseURL, id)
	if err := doJSON(client, http.MethodGet, url, nil, &s, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func sendChat(client *http.Client, baseURL string, id uuid.UUID, message string) (*chat.Response, error) {
	req := chat.Request{SessionID: id, Message: message}
	var resp chat.Response
	if err := doJSON(client, http.MethodPost, baseURL+"/v1/chat", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

type orderInvestigationsResponse struct {
	Order   session.InvestigationOrder `json:"order"`
	ReadyIn string                     `json:"ready_in"`
}

func orderInvestigations(client *http.Client, baseURL string, id uuid.UUID, category string, items []string) (*orderInvestigationsResponse, error) {
	req := map[string]any{"category": category, "items": items}
	var resp orderInvestigationsResponse
	url := fmt.Sprintf("%s/v1/sessions/%s/investigations", baseURL, id)
	if err := doJSON(client, http.MethodPost, url, req, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &resp, nil
}

type investigationResultsGroup struct {
	Label    string            `json:"label"`
	Category string            `json:"category"`
	Pending  bool              `json:"pending"`
	Results  []scenario.Result `json:"results,omitempty"`
}

func getResults(client *http.Client, baseURL string, id uuid.UUID) ([]investigationResultsGroup, error) {
	var resp struct {
		Investigations []investigationResultsGroup `json:"investigations"`
	}
	url := fmt.Sprintf("%s/v1/sessions/%s/results", baseURL, id)
	if err := doJSON(client, http.MethodGet, url, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Investigations, nil
}

func examine(client *http.Client, baseURL string, id uuid.UUID, kind, item string) (*session.ExaminedFinding, error) {
	req := map[string]string{"kind": kind, "item": item}
	var finding session.ExaminedFinding
	url := fmt.Sprintf("%s/v1/sessions/%s/exams", baseURL, id)
	if err := doJSON(client, http.MethodPost, url, req, &finding, http.StatusOK); err != nil {
		return nil, err
	}
	return &finding, nil
}

type orderMedicationResponse struct {
	Order            session.MedicationOrder `json:"order"`
	Contraindication string                  `json:"contraindication,omitempty"`
}

func orderMedication(client *http.Client, baseURL string, id uuid.UUID, name string, dose float64, unit string) (*orderMedicationResponse, error) {
	req := map[string]any{"name": name, "dose": dose, "unit": unit}
	var resp orderMedicationResponse
	url := fmt.Sprintf("%s/v1/sessions/%s/medications", baseURL, id)
	if err := doJSON(client, http.MethodPost, url, req, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &resp, nil
}

type diagnosisResponse struct {
	Session session.Session `json:"session"`
	Debrief debrief.Debrief `json:"debrief"`
}

func submitDiagnosis(client *http.Client, baseURL string, id uuid.UUID, diagnosis string) (*diagnosisResponse, error) {
	req := map[string]string{"diagnosis": diagnosis}
	var resp diagnosisResponse
	url := fmt.Sprintf("%s/v1/sessions/%s/diagnosis", baseURL, id)
	if err := doJSON(client, http.MethodPost, url, req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

func submitHandoff(client *http.Client, baseURL string, id uuid.UUID, content string) (*handoff.Feedback, error) {
	req := map[string]any{
		"session_id": id,
		"report":     handoff.Report{Content: content},
	}
	var fb handoff.Feedback
	if err := doJSON(client, http.MethodPost, baseURL+"/v1/handoff", req, &fb, http.StatusOK); err != nil {
		return nil, err
	}
	return &fb, nil
}
