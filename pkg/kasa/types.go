package kasa

import "strings"

// LightState is the bulb lighting-service state as reported in sysinfo.
type LightState struct {
	OnOff      int `json:"on_off"`
	Brightness int `json:"brightness,omitempty"`
}

// SysInfo is the subset of the get_sysinfo reply the daemon cares about.
// DeviceID is the stable hardware identifier used for addressing; the
// network address a device answers from may change between discoveries.
type SysInfo struct {
	ErrCode    int         `json:"err_code"`
	DeviceID   string      `json:"deviceId"`
	Alias      string      `json:"alias"`
	Model      string      `json:"model"`
	SWVersion  string      `json:"sw_ver"`
	HWVersion  string      `json:"hw_ver"`
	Type       string      `json:"type,omitempty"`
	MicType    string      `json:"mic_type,omitempty"`
	RelayState int         `json:"relay_state,omitempty"`
	LightState *LightState `json:"light_state,omitempty"`
	RSSI       int         `json:"rssi,omitempty"`
}

// IsBulb reports whether the device is a smart bulb. Bulbs report their
// class in mic_type (newer firmware) or type (older firmware).
func (s *SysInfo) IsBulb() bool {
	return strings.Contains(s.MicType, "SMARTBULB") || strings.Contains(s.Type, "SMARTBULB")
}

// IsOn reports the current power state regardless of device class.
func (s *SysInfo) IsOn() bool {
	if s.LightState != nil {
		return s.LightState.OnOff == 1
	}
	return s.RelayState == 1
}

// sysInfoReply is the envelope get_sysinfo replies arrive in.
type sysInfoReply struct {
	System struct {
		GetSysInfo SysInfo `json:"get_sysinfo"`
	} `json:"system"`
}

// relayReply is the envelope for set_relay_state replies.
type relayReply struct {
	System struct {
		SetRelayState struct {
			ErrCode int    `json:"err_code"`
			ErrMsg  string `json:"err_msg,omitempty"`
		} `json:"set_relay_state"`
	} `json:"system"`
}

// lightReply is the envelope for transition_light_state replies.
type lightReply struct {
	LightingService struct {
		TransitionLightState struct {
			ErrCode int    `json:"err_code"`
			ErrMsg  string `json:"err_msg,omitempty"`
		} `json:"transition_light_state"`
	} `json:"smartlife.iot.smartbulb.lightingservice"`
}
