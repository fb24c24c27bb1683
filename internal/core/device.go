package core

import "fmt"

// Device identifies a tracked piece of VR hardware.
type Device string

const (
	DeviceHead      Device = "head"
	DeviceLeftHand  Device = "left_hand"
	DeviceRightHand Device = "right_hand"
)

// Devices lists every tracked device in recording column order.
var Devices = []Device{DeviceHead, DeviceLeftHand, DeviceRightHand}

// Label returns a human-readable device name.
func (d Device) Label() string {
	switch d {
	case DeviceHead:
		return "HMD"
	case DeviceLeftHand:
		return "Left controller"
	case DeviceRightHand:
		return "Right controller"
	default:
		return string(d)
	}
}

// Column returns the recording column name for a device attribute,
// e.g. DeviceHead.Column("pos_x") is "head_pos_x".
func (d Device) Column(attr string) string {
	return string(d) + "_" + attr
}

// ParseDevice converts a device name into a Device.
func ParseDevice(s string) (Device, error) {
	for _, d := range Devices {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown device %q", s)
}

// Target is an animated object driven by one playback cursor.
// Indicator targets replay the same device track as their primary.
type Target string

const (
	TargetHMD                      Target = "hmd"
	TargetLeftController           Target = "left_controller"
	TargetRightController          Target = "right_controller"
	TargetHMDIndicator             Target = "hmd_indicator"
	TargetLeftControllerIndicator  Target = "left_controller_indicator"
	TargetRightControllerIndicator Target = "right_controller_indicator"
)

// PrimaryTargets are the targets every engine drives.
var PrimaryTargets = []Target{TargetHMD, TargetLeftController, TargetRightController}

// IndicatorTargets are the optional duplicate targets.
var IndicatorTargets = []Target{TargetHMDIndicator, TargetLeftControllerIndicator, TargetRightControllerIndicator}

// Device returns the device whose track drives the target.
func (t Target) Device() Device {
	switch t {
	case TargetHMD, TargetHMDIndicator:
		return DeviceHead
	case TargetLeftController, TargetLeftControllerIndicator:
		return DeviceLeftHand
	default:
		return DeviceRightHand
	}
}

// IsIndicator reports whether the target is a duplicate indicator.
func (t Target) IsIndicator() bool {
	switch t {
	case TargetHMDIndicator, TargetLeftControllerIndicator, TargetRightControllerIndicator:
		return true
	}
	return false
}
