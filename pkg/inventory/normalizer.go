package inventory

import (
	"strings"
	"unicode"
)

// PrinterType categorizes how a printer is attached.
type PrinterType string

const (
	TypeUSB     PrinterType = "usb"
	TypeLocal   PrinterType = "local"
	TypeNetwork PrinterType = "network"
	TypeVirtual PrinterType = "virtual"
	TypeUnknown PrinterType = "unknown"
)

// NormalizeRecord strips trailing whitespace from both fields.
func NormalizeRecord(r PrinterRecord) PrinterRecord {
	r.Name = strings.TrimRightFunc(r.Name, unicode.IsSpace)
	r.Port = strings.TrimRightFunc(r.Port, unicode.IsSpace)
	return r
}

// Classify guesses the attachment type from the printer name and port.
func Classify(r PrinterRecord) PrinterType {
	if r.IsSentinel() {
		return TypeUnknown
	}
	port := strings.ToUpper(r.Port)
	name := strings.ToUpper(r.Name)

	if strings.HasPrefix(port, "USB") {
		return TypeUSB
	}
	if strings.Contains(name, "PDF") || strings.Contains(name, "XPS") ||
		strings.Contains(name, "ONENOTE") || strings.Contains(name, "FAX") ||
		strings.Contains(port, "PORTPROMPT") || strings.Contains(port, "NUL:") ||
		strings.HasPrefix(port, "FILE:") || strings.HasPrefix(port, "CUPS-PDF:") {
		return TypeVirtual
	}
	if strings.HasPrefix(port, "LPT") || strings.HasPrefix(port, "COM") ||
		strings.HasPrefix(port, "/DEV/") || strings.HasPrefix(port, "PARALLEL:") ||
		strings.HasPrefix(port, "SERIAL:") {
		return TypeLocal
	}
	if strings.HasPrefix(port, `\\`) || strings.Contains(port, "://") ||
		strings.HasPrefix(port, "IP_") || strings.Contains(port, ".") || strings.Contains(port, ":") {
		return TypeNetwork
	}
	return TypeUnknown
}
