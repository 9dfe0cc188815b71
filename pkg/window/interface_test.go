package window

import (
	"context"
	"encoding/json"
	"testing"
)

type MockDetector struct {
	windowInfo    *WindowInfo
	err           error
	isAvailable   bool
	displayServer string
	closeError    error
}

func (m *MockDetector) GetFocusedWindow(ctx context.Context) (*WindowInfo, error) {
	return m.windowInfo, m.err
}

func (m *MockDetector) IsAvailable() bool {
	return m.isAvailable
}

func (m *MockDetector) GetDisplayServer() string {
	return m.displayServer
}

func (m *MockDetector) Close() error {
	return m.closeError
}

func TestMockDetector(t *testing.T) {
	var _ Detector = (*MockDetector)(nil)

	mock := &MockDetector{
		windowInfo: &WindowInfo{
			ExeName:       "code",
			WindowTitle:   "main.go - appclock",
			ProcessID:     4242,
			DisplayServer: "x11",
		},
		isAvailable:   true,
		displayServer: "x11",
	}

	windowInfo, err := mock.GetFocusedWindow(context.Background())
	if err != nil {
		t.Errorf("GetFocusedWindow() error: %v", err)
	}
	if windowInfo.ExeName != "code" {
		t.Errorf("ExeName = %s, want code", windowInfo.ExeName)
	}

	if !mock.IsAvailable() {
		t.Error("IsAvailable() = false, want true")
	}

	if err := mock.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestWindowInfoJSON(t *testing.T) {
	info := WindowInfo{
		ExeName:       "firefox",
		WindowTitle:   "Mozilla Firefox",
		ProcessID:     77,
		Class:         "Navigator",
		DisplayServer: "wayland",
	}

	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	want := `{"exe_name":"firefox","title":"Mozilla Firefox","process_id":77}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
