// Package device models the sensors and actuators bridged by the gateway.
//
// Each configured device has a Family that fixes three things: how its
// status payloads are decoded, which fields it reports (driver name plus
// unit code), and which supervisory verbs it accepts.
//
//	switch          ON / OFF token            ST
//	ifan            {"FanSpeed": 0..3}        ST
//	flag            OK, NOK, LO, HI, ...      ST
//	sensor          {"motion", "temperature", "humidity", "ldr", "state", "color", ...}
//	Temp            {"DS18B20": {...}}        ST CLITEMP
//	TempHumid       {"AM2301": {...}}         ST CLITEMP CLIHUM
//	TempHumidPress  {"BME280": {...}}         ST CLITEMP CLIHUM BARPRES
//	distance        {"SR04": {...}}           ST DISTANC
//	analog          {"ANALOG": {"A0": n}}     ST GPV
//	s31             {"ENERGY": {...}}         ST CC CPW CV PF TPW
//	raw             bare integer              ST GV1
//	RGBW            {"state", "br", "c", "pgm"}
//
// A rejected payload leaves the device unchanged. Boolean transitions
// (on/off, motion/standby) produce DON/DOF events only on change, while
// level values are reported on every payload.
//
// The Registry is built once from the device list and never mutated.
// Identifiers are normalized (lower-case, alphanumeric, at most 14
// characters) and the first descriptor to claim an identifier wins.
package device
