package realtime

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ent0n29/symptomcheck/internal/report"
)

const ToolUpdateAnalysis = "updateAnalysis"

var toolFields = []struct {
	name        string
	description string
}{
	{"symptoms", "สรุปอาการที่ผู้ใช้เล่า"},
	{"advice", "คำแนะนำเบื้องต้นในการดูแลตนเอง"},
	{"precautions", "ข้อควรระวังและสัญญาณอันตรายที่ต้องพบแพทย์"},
}

// UpdateAnalysisDeclaration describes the single tool the voice model may call.
func UpdateAnalysisDeclaration() *genai.FunctionDeclaration {
	props := make(map[string]*genai.Schema, len(toolFields))
	required := make([]string, 0, len(toolFields))
	for _, f := range toolFields {
		props[f.name] = &genai.Schema{Type: genai.TypeString, Description: f.description}
		required = append(required, f.name)
	}
	return &genai.FunctionDeclaration{
		Name:        ToolUpdateAnalysis,
		Description: "อัปเดตผลการประเมินอาการบนหน้าจอของผู้ใช้",
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   required,
		},
	}
}

// ParseAnalysisArgs validates updateAnalysis arguments: every field must be
// present as a string and at least one must carry text.
func ParseAnalysisArgs(args map[string]any) (report.Analysis, error) {
	values := make(map[string]string, len(toolFields))
	for _, f := range toolFields {
		raw, ok := args[f.name]
		if !ok {
			return report.Analysis{}, fmt.Errorf("%w: missing %q", ErrInvalidToolCall, f.name)
		}
		s, ok := raw.(string)
		if !ok {
			return report.Analysis{}, fmt.Errorf("%w: %q is %T, want string", ErrInvalidToolCall, f.name, raw)
		}
		values[f.name] = strings.TrimSpace(s)
	}
	a := report.Analysis{
		Symptoms:    values["symptoms"],
		Advice:      values["advice"],
		Precautions: values["precautions"],
	}
	if a.Empty() {
		return report.Analysis{}, fmt.Errorf("%w: all fields empty", ErrInvalidToolCall)
	}
	return a, nil
}

func okAck(call ToolCall) ToolResponse {
	return ToolResponse{ID: call.ID, Name: call.Name, Response: map[string]any{"result": "ok"}}
}

func errorAck(call ToolCall, err error) ToolResponse {
	return ToolResponse{ID: call.ID, Name: call.Name, Response: map[string]any{"error": err.Error()}}
}
