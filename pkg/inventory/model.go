package inventory

// None marks a missing printer name or address.
const None = "NONE"

// PrinterRecord describes one printer reported by a host.
type PrinterRecord struct {
	Name string `json:"printer_name"`
	Port string `json:"printer_ip"`
}

// Sentinel stands in for "no printers found" or an unusable result.
var Sentinel = PrinterRecord{Name: None, Port: None}

// Valid reports whether both fields carry a value.
func (r PrinterRecord) Valid() bool {
	return r.Name != "" && r.Port != ""
}

// IsSentinel reports whether r is the NONE placeholder.
func (r PrinterRecord) IsSentinel() bool {
	return r == Sentinel
}

// ReportRow is one line of the exported report.
type ReportRow struct {
	Hostname    string `json:"hostname"`
	PrinterName string `json:"printer_name"`
	PrinterIP   string `json:"printer_ip"`
}

// SentinelRow builds the NONE row for host.
func SentinelRow(host string) ReportRow {
	return ReportRow{Hostname: host, PrinterName: None, PrinterIP: None}
}

// IsSentinel reports whether the row carries no printer.
func (r ReportRow) IsSentinel() bool {
	return r.PrinterName == None && r.PrinterIP == None
}

// Header is the column order of the report.
var Header = []string{"hostname", "printer_name", "printer_ip"}

// Fields returns the row in Header order.
func (r ReportRow) Fields() []string {
	return []string{r.Hostname, r.PrinterName, r.PrinterIP}
}
