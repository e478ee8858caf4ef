package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// loadINI maps a flat INI layout onto the config. Sections mirror the YAML
// keys; list values are comma separated.
func (c *Config) loadINI(filename string) error {
	f, err := ini.LoadSources(ini.LoadOptions{Insensitive: true, AllowBooleanKeys: true}, filename)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	root := f.Section("")
	c.Input = root.Key("input").MustString(c.Input)
	c.Output = root.Key("output").MustString(c.Output)
	c.Interactive = root.Key("interactive").MustBool(c.Interactive)
	c.Backend = root.Key("backend").MustString(c.Backend)

	q := f.Section("query")
	c.Query.Mode = q.Key("mode").MustString(c.Query.Mode)
	c.Query.TimeoutMS = q.Key("timeout_ms").MustInt(c.Query.TimeoutMS)
	c.Query.MaxWorkers = q.Key("max_workers").MustInt(c.Query.MaxWorkers)
	c.Query.OnError = q.Key("on_error").MustString(c.Query.OnError)
	c.Query.HeaderLines = q.Key("header_lines").MustInt(c.Query.HeaderLines)

	c.PowerShell.Executable = f.Section("powershell").Key("executable").MustString(c.PowerShell.Executable)

	s := f.Section("ssh")
	c.SSH.User = s.Key("user").MustString(c.SSH.User)
	c.SSH.Port = s.Key("port").MustInt(c.SSH.Port)
	c.SSH.KeyFile = s.Key("key_file").MustString(c.SSH.KeyFile)
	c.SSH.Password = s.Key("password").MustString(c.SSH.Password)
	c.SSH.KnownHostsFile = s.Key("known_hosts_file").MustString(c.SSH.KnownHostsFile)

	n := f.Section("snmp")
	c.SNMP.Community = n.Key("community").MustString(c.SNMP.Community)
	c.SNMP.Port = n.Key("port").MustInt(c.SNMP.Port)
	c.SNMP.Retries = n.Key("retries").MustInt(c.SNMP.Retries)

	d := f.Section("denylist")
	c.Denylist.Names = listKey(d, "names", c.Denylist.Names)
	c.Denylist.Ports = listKey(d, "ports", c.Denylist.Ports)
	c.Denylist.NamePatterns = listKey(d, "name_patterns", c.Denylist.NamePatterns)
	c.Denylist.PortPatterns = listKey(d, "port_patterns", c.Denylist.PortPatterns)

	h := f.Section("history")
	c.History.Enabled = h.Key("enabled").MustBool(c.History.Enabled)
	c.History.Path = h.Key("path").MustString(c.History.Path)

	sc := f.Section("scheduler")
	c.Scheduler.Enabled = sc.Key("enabled").MustBool(c.Scheduler.Enabled)
	c.Scheduler.Tick = sc.Key("tick").MustString(c.Scheduler.Tick)
	c.Scheduler.WatchInput = sc.Key("watch_input").MustBool(c.Scheduler.WatchInput)

	g := f.Section("glpi")
	c.GLPI.BaseURL = g.Key("base_url").MustString(c.GLPI.BaseURL)
	c.GLPI.AppToken = g.Key("app_token").MustString(c.GLPI.AppToken)
	c.GLPI.UserToken = g.Key("user_token").MustString(c.GLPI.UserToken)

	l := f.Section("logging")
	c.Logging.Level = l.Key("level").MustString(c.Logging.Level)
	c.Logging.Path = l.Key("path").MustString(c.Logging.Path)
	c.Logging.Format = l.Key("format").MustString(c.Logging.Format)
	return nil
}

// listKey keeps an explicit empty entry so the "" denylist member survives
// a round trip through INI.
func listKey(sec *ini.Section, name string, def []string) []string {
	if !sec.HasKey(name) {
		return def
	}
	raw := sec.Key(name).String()
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts)+1)
	out = append(out, "")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
