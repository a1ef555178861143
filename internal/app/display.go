package app

import (
	"fmt"
	"image"
	"log"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Status is the coarse hub state shown to the wearer.
type Status int

const (
	StatusBooting Status = iota
	StatusReady
	StatusClientConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusBooting:
		return "Booting"
	case StatusReady:
		return "Ready"
	case StatusClientConnected:
		return "Client"
	case StatusReconnecting:
		return "Joining"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Panel is the drawing surface of a display.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// StatusDisplay renders the hub status on an optional OLED panel.
// With a nil panel it only logs transitions.
type StatusDisplay struct {
	mu      sync.Mutex
	panel   Panel
	status  Status
	network string
	ssid    string
	client  string
}

// NewStatusDisplay returns a display drawing on panel (may be nil).
func NewStatusDisplay(panel Panel) *StatusDisplay {
	return &StatusDisplay{panel: panel}
}

// OpenStatusDisplay initialises the SSD1306 on b.
func OpenStatusDisplay(b i2c.Bus) (*StatusDisplay, error) {
	dev, err := ssd1306.NewI2C(b, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: ssd1306 initialized")
	d := NewStatusDisplay(dev)
	d.redraw()
	return d, nil
}

// SetStatus changes the displayed state.
func (d *StatusDisplay) SetStatus(s Status) {
	d.mu.Lock()
	changed := d.status != s
	d.status = s
	d.mu.Unlock()
	if changed {
		log.Printf("display: status %s", s)
		d.redraw()
	}
}

// SetNetwork records the network mode and SSID.
func (d *StatusDisplay) SetNetwork(mode, ssid string) {
	d.mu.Lock()
	d.network, d.ssid = mode, ssid
	d.mu.Unlock()
	d.redraw()
}

// SetClient records the connected client address, "" when none.
func (d *StatusDisplay) SetClient(addr string) {
	d.mu.Lock()
	d.client = addr
	d.mu.Unlock()
	d.redraw()
}

// Status returns the current state.
func (d *StatusDisplay) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Lines returns the text currently shown, one entry per display row.
func (d *StatusDisplay) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.linesLocked()
}

func (d *StatusDisplay) linesLocked() []string {
	net := "no network"
	if d.ssid != "" {
		net = fmt.Sprintf("%s %s", d.network, d.ssid)
	}
	client := "no client"
	if d.client != "" {
		client = d.client
	}
	return []string{
		"Sensor Hub",
		d.status.String(),
		net,
		client,
	}
}

func (d *StatusDisplay) redraw() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panel == nil {
		return
	}
	img := renderLines(d.linesLocked())
	if err := d.panel.Draw(d.panel.Bounds(), img, image.Point{}); err != nil {
		log.Printf("display: draw error: %v", err)
	}
}

func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, l := range lines {
		if len(l) > 18 {
			l = l[:18]
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(l)
	}
	return img
}
