package agents

import (
	"context"
	"strings"
	"testing"

	"joby/internal/domain"
)

func TestGreetingNewUser(t *testing.T) {
	agent := NewCommunicationAgent()

	resp, err := agent.Invoke(context.Background(), mustEnvelope(domain.TargetCommunication, CommunicationInput{
		Type: MessageGreeting, IsNew: true, FirstName: "Ada",
	}))
	if err != nil {
		t.Fatal(err)
	}
	out := resp.OutputPayload.(CommunicationOutput)
	if !strings.Contains(out.Message, "Hello Ada!") {
		t.Errorf("message = %q, want personalized hello", out.Message)
	}
	if !strings.Contains(out.Message, "upload your CV") {
		t.Errorf("message = %q, want CV upload prompt", out.Message)
	}
}

func TestGreetingReturningUser(t *testing.T) {
	agent := NewCommunicationAgent()

	resp, err := agent.Invoke(context.Background(), mustEnvelope(domain.TargetCommunication, CommunicationInput{
		Type: MessageGreeting, IsNew: false,
	}))
	if err != nil {
		t.Fatal(err)
	}
	out := resp.OutputPayload.(CommunicationOutput)
	if !strings.Contains(out.Message, "Welcome back") {
		t.Errorf("message = %q, want returning-user wording", out.Message)
	}
}

func TestReportMessage(t *testing.T) {
	agent := NewCommunicationAgent()

	resp, err := agent.Invoke(context.Background(), mustEnvelope(domain.TargetCommunication, CommunicationInput{
		Type:         MessageReport,
		Applications: []domain.ApplicationResult{{JobID: "a"}, {JobID: "b"}},
		Matches:      []domain.JobMatch{{Title: "Engineer", Company: "Acme"}},
	}))
	if err != nil {
		t.Fatal(err)
	}
	out := resp.OutputPayload.(CommunicationOutput)
	if !strings.Contains(out.Message, "2 application(s)") {
		t.Errorf("message = %q, want application count", out.Message)
	}
	if !strings.Contains(out.Message, "Engineer at Acme") {
		t.Errorf("message = %q, want top match", out.Message)
	}
}

func TestUnknownMessageTypeFails(t *testing.T) {
	agent := NewCommunicationAgent()

	resp, err := agent.Invoke(context.Background(), mustEnvelope(domain.TargetCommunication, CommunicationInput{Type: "NOPE"}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != domain.StatusFailed {
		t.Errorf("status = %q, want failed", resp.Status)
	}
}
