// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// RegisterInfo describes one device register for the register probe.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// BitField describes a group of bits inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// MC3416RegisterMap returns metadata for the MC3416 registers the hub touches.
func MC3416RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Status and control
		{Address: "0x05", Name: "DEV_STAT", Description: "Device Status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "OTP_BUSY", Description: "OTP memory busy", Values: "0=Idle, 1=Busy"},
				{Bits: "1:0", Name: "STATE", Description: "Device state", Values: "0=Standby, 1=Wake"},
			}},
		{Address: "0x06", Name: "INTR_CTRL", Description: "Interrupt Enable", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "ACQ_INT_EN", Description: "Sample acquired interrupt", Values: "0=Disabled, 1=Enabled"},
				{Bits: "3", Name: "SHAKE_INT_EN", Description: "Shake interrupt", Values: "0=Disabled, 1=Enabled"},
				{Bits: "2", Name: "ANYM_INT_EN", Description: "Any-motion interrupt", Values: "0=Disabled, 1=Enabled"},
				{Bits: "0", Name: "TILT_INT_EN", Description: "Tilt interrupt", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: "0x07", Name: "MODE", Description: "Mode", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "IPP/IAH", Description: "Interrupt pin drive and polarity", Values: ""},
				{Bits: "4", Name: "I2C_WDT", Description: "I2C watchdog", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1:0", Name: "STATE", Description: "Operating state", Values: "0=Standby, 1=Wake"},
			}},
		{Address: "0x08", Name: "SR", Description: "Sample Rate", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "2:0", Name: "RATE", Description: "Output data rate", Values: "0=128Hz, 1=256Hz, 2=512Hz, 5=1024Hz"},
			}},
		{Address: "0x09", Name: "MOTION_CTRL", Description: "Motion Control", Access: "RW", Default: "0x00"},

		// Output registers (read-only)
		{Address: "0x0D", Name: "XOUT_EX_L", Description: "X-Axis Low Byte", Access: "R"},
		{Address: "0x0E", Name: "XOUT_EX_H", Description: "X-Axis High Byte", Access: "R"},
		{Address: "0x0F", Name: "YOUT_EX_L", Description: "Y-Axis Low Byte", Access: "R"},
		{Address: "0x10", Name: "YOUT_EX_H", Description: "Y-Axis High Byte", Access: "R"},
		{Address: "0x11", Name: "ZOUT_EX_L", Description: "Z-Axis Low Byte", Access: "R"},
		{Address: "0x12", Name: "ZOUT_EX_H", Description: "Z-Axis High Byte", Access: "R"},

		{Address: "0x14", Name: "INTR_STAT", Description: "Interrupt Status", Access: "R", Default: "0x00"},
		{Address: "0x20", Name: "RANGE", Description: "Range Select Control", Access: "RW", Default: "0x09",
			BitFields: []BitField{
				{Bits: "6:4", Name: "RANGE", Description: "Full scale range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g, 4=±12g"},
			}},
	}
}
