package catalog

import (
	"encoding/xml"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// encoding/xml deserializes schemas.xml and logs.xml into the raw
// material the rest of the Catalog is built from. A third-party parser
// isn't warranted here: the documents are small, fixed-shape, and the
// corpus carries no XML library for this concern.

type schemasDoc struct {
	XMLName xml.Name     `xml:"schemas"`
	Schemas []schemaNode `xml:"schema"`
}

type schemaNode struct {
	Name    string `xml:"name"`
	Regex   string `xml:"regex"`
	Columns string `xml:"columns"`
}

type logsDoc struct {
	XMLName xml.Name  `xml:"logs"`
	Logs    []logNode `xml:"log"`
}

type logNode struct {
	Location         string `xml:"location"`
	Schemas          string `xml:"schemas"`
	DatabaseSoftware string `xml:"database-software"`
	Database         string `xml:"database"`
	Table            string `xml:"table"`
	Server           string `xml:"server"`
	Username         string `xml:"username"`
	Password         string `xml:"password"`
	Port             string `xml:"port"`
	UID              string `xml:"uid"`
	GID              string `xml:"gid"`
	Permissions      string `xml:"permissions"`
}

// ConfigSearchPaths is the three-location search order: /etc/loggerfs/,
// <prefix>/etc/loggerfs/, then the current directory. The first location
// that yields a loadable file wins.
func ConfigSearchPaths(prefix string) []string {
	return []string{"/etc/loggerfs", filepath.Join(prefix, "etc", "loggerfs"), "."}
}

// LoadSchemas loads schemas.xml from the first directory in dirs that
// contains it, compiling and validating every schema. A schema that
// fails to compile or violates Schema.Validate (its invariant is capture
// count equal to column count) is excluded from the result and logged,
// not fatal — the rest of the document still loads, matching how the
// original schema loader tolerated a bad entry and only skipped it at
// match time rather than refusing the whole file. It also returns the
// directory it loaded from.
func LoadSchemas(dirs []string, log *zap.Logger) (map[string]*Schema, string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, "schemas.xml")
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var doc schemasDoc
		if err := xml.Unmarshal(b, &doc); err != nil {
			return nil, "", fmt.Errorf("parse %s: %w", path, err)
		}
		out := make(map[string]*Schema, len(doc.Schemas))
		for _, n := range doc.Schemas {
			s, err := buildSchema(n)
			if err != nil {
				log.Warn("schemas.xml: skipping invalid schema", zap.String("name", n.Name), zap.Error(err))
				continue
			}
			out[s.Name] = s
		}
		return out, dir, nil
	}
	return nil, "", fmt.Errorf("schemas.xml not found in any of %v", dirs)
}

func buildSchema(n schemaNode) (*Schema, error) {
	re, err := regexp.Compile("^(?:" + n.Regex + ")$")
	if err != nil {
		return nil, fmt.Errorf("schema %q: invalid regex: %w", n.Name, err)
	}
	cols := splitTrim(n.Columns)
	s := &Schema{Name: n.Name, Regex: re, Columns: cols}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadMounts loads logs.xml from the first directory in dirs that
// contains it. uid/gid fields that aren't numeric are resolved against
// the host user/group databases.
func LoadMounts(dirs []string) (map[string]*LogMount, []string, string, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, "logs.xml")
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var doc logsDoc
		if err := xml.Unmarshal(b, &doc); err != nil {
			return nil, nil, "", fmt.Errorf("parse %s: %w", path, err)
		}
		out := make(map[string]*LogMount, len(doc.Logs))
		order := make([]string, 0, len(doc.Logs))
		for _, n := range doc.Logs {
			m, err := buildMount(n)
			if err != nil {
				return nil, nil, "", fmt.Errorf("%s: %w", path, err)
			}
			out[m.Path] = m
			order = append(order, m.Path)
		}
		return out, order, dir, nil
	}
	return nil, nil, "", fmt.Errorf("logs.xml not found in any of %v", dirs)
}

func buildMount(n logNode) (*LogMount, error) {
	backend, err := normalizeBackend(n.DatabaseSoftware)
	if err != nil {
		return nil, fmt.Errorf("log %q: %w", n.Location, err)
	}
	port, err := parseIntDefault(n.Port, 0)
	if err != nil {
		return nil, fmt.Errorf("log %q: bad port: %w", n.Location, err)
	}
	uid, err := resolveUID(n.UID)
	if err != nil {
		return nil, fmt.Errorf("log %q: bad uid: %w", n.Location, err)
	}
	gid, err := resolveGID(n.GID)
	if err != nil {
		return nil, fmt.Errorf("log %q: bad gid: %w", n.Location, err)
	}
	perm, err := parseOctalDefault(n.Permissions, 0)
	if err != nil {
		return nil, fmt.Errorf("log %q: bad permissions: %w", n.Location, err)
	}

	m := &LogMount{
		Path:    n.Location,
		Schemas: splitTrim(n.Schemas),
		Backend: backend,
		Endpoint: Endpoint{
			Server:   n.Server,
			Port:     port,
			Database: n.Database,
			Table:    n.Table,
			Username: n.Username,
			Password: n.Password,
		},
		UID:  uid,
		GID:  gid,
		Mode: perm,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func normalizeBackend(s string) (Backend, error) {
	switch s {
	case "postgresql", "pgsql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unknown database-software %q", s)
	}
}

func splitTrim(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseIntDefault(s string, def int) (int, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseOctalDefault(s string, def uint32) (uint32, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 8, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func resolveUID(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(v), nil
	}
	u, err := user.Lookup(s)
	if err != nil {
		return 0, fmt.Errorf("resolve user %q: %w", s, err)
	}
	v, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func resolveGID(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(v), nil
	}
	g, err := user.LookupGroup(s)
	if err != nil {
		return 0, fmt.Errorf("resolve group %q: %w", s, err)
	}
	v, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// Load loads both documents from the given search directories and
// assembles a Catalog. It also returns the directory each document
// loaded from. log receives
// warnings about any schema skipped along the way; nil is accepted.
func Load(dirs []string, log *zap.Logger) (cat *Catalog, schemaDir, logDir string, err error) {
	schemas, schemaDir, err := LoadSchemas(dirs, log)
	if err != nil {
		return nil, "", "", err
	}
	mounts, order, logDir, err := LoadMounts(dirs)
	if err != nil {
		return nil, "", "", err
	}
	return New(schemas, mounts, order), schemaDir, logDir, nil
}
