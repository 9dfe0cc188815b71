package wayland

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/actionsum/appclock/pkg/window"
)

// Detector implements window.Detector for wlroots compositors that expose
// an IPC command: sway and Hyprland
type Detector struct {
	compositor string
	resolver   window.ExeResolver
}

// NewDetector creates a new Wayland detector
func NewDetector(resolver window.ExeResolver) *Detector {
	return &Detector{
		compositor: detectCompositor(),
		resolver:   resolver,
	}
}

// detectCompositor identifies the compositor from the variables it exports
// to its clients
func detectCompositor() string {
	switch {
	case os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "":
		return "hyprland"
	case os.Getenv("SWAYSOCK") != "":
		return "sway"
	default:
		return "unknown"
	}
}

// commandExists checks if a command is available in PATH
func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// IsAvailable checks if Wayland detection is available
func (d *Detector) IsAvailable() bool {
	switch d.compositor {
	case "sway":
		return commandExists("swaymsg")
	case "hyprland":
		return commandExists("hyprctl")
	default:
		return false
	}
}

// GetDisplayServer returns "wayland"
func (d *Detector) GetDisplayServer() string {
	return "wayland"
}

// Compositor returns the detected compositor name
func (d *Detector) Compositor() string {
	return d.compositor
}

// GetFocusedWindow returns information about the currently focused window
func (d *Detector) GetFocusedWindow(ctx context.Context) (*window.WindowInfo, error) {
	var (
		info *window.WindowInfo
		err  error
	)

	switch d.compositor {
	case "sway":
		info, err = d.query(ctx, parseSwayTree, "swaymsg", "-t", "get_tree")
	case "hyprland":
		info, err = d.query(ctx, parseHyprlandWindow, "hyprctl", "-j", "activewindow")
	default:
		return nil, fmt.Errorf("unsupported wayland compositor: %s", d.compositor)
	}
	if err != nil {
		return nil, err
	}

	if d.resolver != nil && info.ProcessID != 0 {
		if exe, err := d.resolver.ExeName(ctx, info.ProcessID); err == nil && exe != "" {
			info.ExeName = exe
		}
	}
	if info.ExeName == "" {
		return nil, fmt.Errorf("focused %s window has no application id", d.compositor)
	}

	info.DisplayServer = "wayland"
	return info, nil
}

func (d *Detector) query(ctx context.Context, parse func([]byte) (*window.WindowInfo, error), name string, args ...string) (*window.WindowInfo, error) {
	output, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s: %w", name, err)
	}
	return parse(output)
}

// swayNode is the subset of the sway tree needed to find the focused view
type swayNode struct {
	Name             string     `json:"name"`
	Focused          bool       `json:"focused"`
	PID              uint32     `json:"pid"`
	AppID            string     `json:"app_id"`
	WindowProperties *struct {
		Class    string `json:"class"`
		Instance string `json:"instance"`
	} `json:"window_properties"`
	Nodes         []swayNode `json:"nodes"`
	FloatingNodes []swayNode `json:"floating_nodes"`
}

func (n *swayNode) focused() *swayNode {
	if n.Focused && (n.PID != 0 || n.AppID != "" || n.WindowProperties != nil) {
		return n
	}
	for i := range n.Nodes {
		if f := n.Nodes[i].focused(); f != nil {
			return f
		}
	}
	for i := range n.FloatingNodes {
		if f := n.FloatingNodes[i].focused(); f != nil {
			return f
		}
	}
	return nil
}

// parseSwayTree finds the focused view in `swaymsg -t get_tree` output
func parseSwayTree(output []byte) (*window.WindowInfo, error) {
	var root swayNode
	if err := json.Unmarshal(output, &root); err != nil {
		return nil, fmt.Errorf("failed to parse sway tree: %w", err)
	}

	node := root.focused()
	if node == nil {
		return nil, fmt.Errorf("no focused window in sway tree")
	}

	info := &window.WindowInfo{
		ExeName:     node.AppID,
		WindowTitle: node.Name,
		ProcessID:   node.PID,
	}
	// XWayland views carry X11 properties instead of an app_id
	if node.WindowProperties != nil {
		info.Class = node.WindowProperties.Class
		if info.ExeName == "" {
			info.ExeName = node.WindowProperties.Instance
		}
	}
	return info, nil
}

type hyprlandWindow struct {
	Class        string `json:"class"`
	InitialClass string `json:"initialClass"`
	Title        string `json:"title"`
	PID          int64  `json:"pid"`
}

// parseHyprlandWindow parses `hyprctl -j activewindow` output
func parseHyprlandWindow(output []byte) (*window.WindowInfo, error) {
	var w hyprlandWindow
	if err := json.Unmarshal(output, &w); err != nil {
		return nil, fmt.Errorf("failed to parse hyprland window: %w", err)
	}
	if w.PID <= 0 && w.Class == "" {
		return nil, fmt.Errorf("no focused window reported by hyprland")
	}

	exe := w.InitialClass
	if exe == "" {
		exe = w.Class
	}

	info := &window.WindowInfo{
		ExeName:     exe,
		WindowTitle: w.Title,
		Class:       w.Class,
	}
	if w.PID > 0 {
		info.ProcessID = uint32(w.PID)
	}
	return info, nil
}

// Close cleans up resources
func (d *Detector) Close() error {
	return nil
}
