package query

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/inventory"
	"github.com/nmasdoufi/printaudit/pkg/logging"
)

// HOST-RESOURCES-MIB device table columns.
const (
	oidHrDeviceType    = ".1.3.6.1.2.1.25.3.2.1.2"
	oidHrDeviceDescr   = ".1.3.6.1.2.1.25.3.2.1.3"
	oidHrDevicePrinter = ".1.3.6.1.2.1.25.3.1.5"
)

// SNMP enumerates printers from hrDeviceTable. Useful for hosts without
// PowerShell remoting and for network printers queried directly.
type SNMP struct {
	community string
	port      uint16
	retries   int
	timeout   time.Duration
	log       *logging.Logger
}

// NewSNMP creates the SNMP v2c backend.
func NewSNMP(cfg config.SNMPConfig, timeout time.Duration, log *logging.Logger) (*SNMP, error) {
	if cfg.Community == "" {
		cfg.Community = "public"
	}
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("snmp port %d out of range", cfg.Port)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &SNMP{
		community: cfg.Community,
		port:      uint16(cfg.Port),
		retries:   cfg.Retries,
		timeout:   timeout,
		log:       log,
	}, nil
}

// Name identifies the backend.
func (s *SNMP) Name() string { return config.BackendSNMP }

// Query walks the device table on host.
func (s *SNMP) Query(ctx context.Context, host string) (Response, error) {
	snmp := &gosnmp.GoSNMP{
		Target:    host,
		Port:      s.port,
		Community: s.community,
		Version:   gosnmp.Version2c,
		Timeout:   s.timeout,
		Retries:   s.retries,
		Context:   ctx,
	}
	if err := snmp.Connect(); err != nil {
		return Response{}, &Error{Host: host, Attribute: "snmp", Err: err}
	}
	defer snmp.Conn.Close()

	types := map[int]string{}
	err := snmp.BulkWalk(oidHrDeviceType, func(pdu gosnmp.SnmpPDU) error {
		idx, ok := tableIndex(pdu.Name, oidHrDeviceType)
		if !ok {
			return nil
		}
		if oid, ok := pdu.Value.(string); ok {
			types[idx] = oid
		}
		return nil
	})
	if err != nil {
		return Response{}, &Error{Host: host, Attribute: "hrDeviceType", Err: err}
	}

	descr := map[int]string{}
	err = snmp.BulkWalk(oidHrDeviceDescr, func(pdu gosnmp.SnmpPDU) error {
		idx, ok := tableIndex(pdu.Name, oidHrDeviceDescr)
		if !ok {
			return nil
		}
		if b, ok := pdu.Value.([]byte); ok {
			descr[idx] = string(b)
		}
		return nil
	})
	if err != nil {
		return Response{}, &Error{Host: host, Attribute: "hrDeviceDescr", Err: err}
	}

	records := printerRecords(types, descr, host)
	s.log.Debugf("%s: %d of %d devices are printers", host, len(records), len(types))
	return Response{Format: FormatRecords, Records: records}, nil
}

// printerRecords keeps printer-typed devices in index order. The queried
// address stands in for the port since the MIB carries none.
func printerRecords(types, descr map[int]string, addr string) []inventory.PrinterRecord {
	var idx []int
	for i, t := range types {
		if strings.TrimPrefix(t, ".") == strings.TrimPrefix(oidHrDevicePrinter, ".") {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	out := make([]inventory.PrinterRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, inventory.PrinterRecord{Name: descr[i], Port: addr})
	}
	return out
}

func tableIndex(name, column string) (int, bool) {
	name = "." + strings.TrimPrefix(name, ".")
	if !strings.HasPrefix(name, column+".") {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(name, column+"."))
	if err != nil {
		return 0, false
	}
	return i, true
}
