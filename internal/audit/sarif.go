package audit

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"arbor/internal/check"
)

const (
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion = "2.1.0"
)

// SarifMeta describes the tool run.
type SarifMeta struct {
	ToolName       string
	ToolVersion    string
	InformationURI string
	RunID          uuid.UUID
	InvocationArgs []string
}

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool         `json:"tool"`
	AutomationDetails sarifAutomation   `json:"automationDetails"`
	Invocations       []sarifInvocation `json:"invocations"`
	Results           []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version,omitempty"`
	InformationURI string      `json:"informationUri,omitempty"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID   string       `json:"id"`
	Name string       `json:"name,omitempty"`
	Text sarifMessage `json:"shortDescription"`
}

type sarifAutomation struct {
	GUID string `json:"guid"`
}

type sarifInvocation struct {
	Arguments     []string            `json:"arguments,omitempty"`
	Successful    bool                `json:"executionSuccessful"`
	Notifications []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

type sarifNotification struct {
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	RuleIndex int             `json:"ruleIndex"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifLocation struct {
	Physical sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	Artifact sarifArtifact `json:"artifactLocation"`
	Region   *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

// SarifListener collects events and writes one SARIF 2.1.0 log when the
// audit finishes.
type SarifListener struct {
	NopListener
	w       io.Writer
	meta    SarifMeta
	rules   []sarifRule
	ruleIdx map[string]int
	results []sarifResult
	notes   []sarifNotification
}

func NewSarifListener(w io.Writer, meta SarifMeta) *SarifListener {
	if meta.ToolName == "" {
		meta.ToolName = "arbor"
	}
	if meta.RunID == uuid.Nil {
		meta.RunID = uuid.New()
	}
	return &SarifListener{w: w, meta: meta, ruleIdx: make(map[string]int)}
}

func sarifLevel(s Severity) string {
	switch s {
	case check.SevError:
		return "error"
	case check.SevWarning:
		return "warning"
	}
	return "note"
}

func (l *SarifListener) rule(ev *Event) int {
	id := ev.Identifier()
	if i, ok := l.ruleIdx[id]; ok {
		return i
	}
	l.rules = append(l.rules, sarifRule{
		ID:   id,
		Name: check.SimpleName(ev.ModuleName()),
		Text: sarifMessage{Text: ev.ModuleName()},
	})
	l.ruleIdx[id] = len(l.rules) - 1
	return len(l.rules) - 1
}

func (l *SarifListener) AddEvent(ev *Event, _ string) {
	loc := sarifLocation{Physical: sarifPhysical{Artifact: sarifArtifact{URI: ev.FileName()}}}
	if ev.Line() > 0 {
		loc.Physical.Region = &sarifRegion{StartLine: ev.Line(), StartColumn: max(ev.Column(), 0)}
	}
	l.results = append(l.results, sarifResult{
		RuleID:    ev.Identifier(),
		RuleIndex: l.rule(ev),
		Level:     sarifLevel(ev.Severity()),
		Message:   sarifMessage{Text: ev.Message()},
		Locations: []sarifLocation{loc},
	})
}

func (l *SarifListener) AddException(path string, err error) {
	l.notes = append(l.notes, sarifNotification{
		Level:   "error",
		Message: sarifMessage{Text: err.Error()},
		Locations: []sarifLocation{{
			Physical: sarifPhysical{Artifact: sarifArtifact{URI: path}},
		}},
	})
}

func (l *SarifListener) AuditFinished() error {
	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:           l.meta.ToolName,
			Version:        l.meta.ToolVersion,
			InformationURI: l.meta.InformationURI,
			Rules:          l.rules,
		}},
		AutomationDetails: sarifAutomation{GUID: l.meta.RunID.String()},
		Invocations: []sarifInvocation{{
			Arguments:     l.meta.InvocationArgs,
			Successful:    len(l.notes) == 0,
			Notifications: l.notes,
		}},
		Results: l.results,
	}
	if run.Tool.Driver.Rules == nil {
		run.Tool.Driver.Rules = []sarifRule{}
	}
	if run.Results == nil {
		run.Results = []sarifResult{}
	}

	enc := json.NewEncoder(l.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sarifLog{Schema: sarifSchema, Version: sarifVersion, Runs: []sarifRun{run}}); err != nil {
		return fmt.Errorf("sarif listener: %w", err)
	}
	return nil
}
