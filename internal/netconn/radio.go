package netconn

import (
	"context"
	"fmt"
	"sync"

	gonm "github.com/Wifx/gonetworkmanager/v2"
)

// Radio is the WiFi interface the Manager drives.
type Radio interface {
	StartAP(ctx context.Context, ssid, password string) error
	Join(ctx context.Context, ssid, password string) error
	Connected(ctx context.Context) (bool, error)
	Disconnect(ctx context.Context) error
}

// networkManager is the part of the NetworkManager D-Bus API the radio uses.
type networkManager interface {
	GetDeviceByIpIface(iface string) (gonm.Device, error)
	AddAndActivateConnection(settings map[string]map[string]interface{}, d gonm.Device) (gonm.ActiveConnection, error)
}

// NMRadio drives a wireless interface through NetworkManager over D-Bus.
// The system bus is dialled on first use.
type NMRadio struct {
	iface string

	mu sync.Mutex
	nm networkManager
}

// NewNMRadio returns a Radio for iface (e.g. "wlan0").
func NewNMRadio(iface string) *NMRadio {
	return &NMRadio{iface: iface}
}

func (r *NMRadio) device(op string) (networkManager, gonm.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nm == nil {
		nm, err := gonm.NewNetworkManager()
		if err != nil {
			return nil, nil, fmt.Errorf("networkmanager %s: %w", op, err)
		}
		r.nm = nm
	}
	dev, err := r.nm.GetDeviceByIpIface(r.iface)
	if err != nil {
		return nil, nil, fmt.Errorf("networkmanager %s: device %s: %w", op, r.iface, err)
	}
	return r.nm, dev, nil
}

func (r *NMRadio) activate(ctx context.Context, op string, settings map[string]map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nm, dev, err := r.device(op)
	if err != nil {
		return err
	}
	if _, err := nm.AddAndActivateConnection(settings, dev); err != nil {
		return fmt.Errorf("networkmanager %s %q: %w", op, settings["connection"]["id"], err)
	}
	return nil
}

// StartAP brings up a shared-address hotspot on the interface.
func (r *NMRadio) StartAP(ctx context.Context, ssid, password string) error {
	return r.activate(ctx, "hotspot", hotspotSettings(ssid, password))
}

// Join asks NetworkManager to connect the interface to ssid.
func (r *NMRadio) Join(ctx context.Context, ssid, password string) error {
	return r.activate(ctx, "join", stationSettings(ssid, password))
}

// Connected reports whether the interface is activated.
func (r *NMRadio) Connected(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, dev, err := r.device("state")
	if err != nil {
		return false, err
	}
	state, err := dev.GetPropertyState()
	if err != nil {
		return false, fmt.Errorf("networkmanager state: %w", err)
	}
	return state == gonm.NmDeviceStateActivated, nil
}

// Disconnect drops the current connection on the interface.
func (r *NMRadio) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, dev, err := r.device("disconnect")
	if err != nil {
		return err
	}
	if err := dev.Disconnect(); err != nil {
		return fmt.Errorf("networkmanager disconnect: %w", err)
	}
	return nil
}

func wirelessSettings(id, ssid, mode, password string) map[string]map[string]interface{} {
	s := map[string]map[string]interface{}{
		"connection": {
			"id":   id,
			"type": "802-11-wireless",
		},
		"802-11-wireless": {
			"ssid": []byte(ssid),
			"mode": mode,
		},
	}
	if password != "" {
		s["802-11-wireless"]["security"] = "802-11-wireless-security"
		s["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      password,
		}
	}
	return s
}

func hotspotSettings(ssid, password string) map[string]map[string]interface{} {
	s := wirelessSettings("hub-ap-"+ssid, ssid, "ap", password)
	s["connection"]["autoconnect"] = false
	s["802-11-wireless"]["band"] = "bg"
	s["ipv4"] = map[string]interface{}{"method": "shared"}
	s["ipv6"] = map[string]interface{}{"method": "ignore"}
	return s
}

func stationSettings(ssid, password string) map[string]map[string]interface{} {
	return wirelessSettings(ssid, ssid, "infrastructure", password)
}
