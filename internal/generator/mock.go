package generator

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockGenerator returns a deterministic three-section reply without network access.
type MockGenerator struct {
	// Delay simulates backend latency; the call honors ctx while waiting.
	Delay time.Duration
}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (g *MockGenerator) Name() string { return "mock" }

func (g *MockGenerator) Generate(ctx context.Context, _ string, symptoms string) (string, error) {
	if g.Delay > 0 {
		t := time.NewTimer(g.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	base := strings.TrimSpace(symptoms)
	return fmt.Sprintf(
		"### อาการที่ตรวจพบ\n- %s\n\n### คำแนะนำเบื้องต้น\n- พักผ่อนและดื่มน้ำให้เพียงพอ\n\n### ข้อควรระวัง\n- หากอาการแย่ลง ให้รีบพบแพทย์ หรือโทร **1669**",
		base,
	), nil
}
