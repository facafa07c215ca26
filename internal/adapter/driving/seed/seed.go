// Package seed loads inventory from a YAML document into an InventoryWriter.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

// Document is the seed file layout.
type Document struct {
	Nodes       []Node       `yaml:"nodes"`
	AdminUsers  []AdminUser  `yaml:"admin_users"`
	SystemUsers []SystemUser `yaml:"system_users"`
	Assets      []Asset      `yaml:"assets"`
}

// Node is one inventory node. Parent is empty for a root node.
type Node struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
}

// AdminUser is a privileged credential that assets reference by ID.
type AdminUser struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	PrivateKey string `yaml:"private_key"`
}

// SystemUser is a credential bound to the listed assets directly and to
// every asset under the listed nodes.
type SystemUser struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	PrivateKey string   `yaml:"private_key"`
	Priority   int      `yaml:"priority"`
	Assets     []string `yaml:"assets"`
	Nodes      []string `yaml:"nodes"`
}

// Asset is one managed host. AdminUser names an AdminUser ID.
type Asset struct {
	ID        string   `yaml:"id"`
	Address   string   `yaml:"address"`
	Hostname  string   `yaml:"hostname"`
	Port      int      `yaml:"port"`
	Platform  string   `yaml:"platform"`
	AdminUser string   `yaml:"admin_user"`
	Nodes     []string `yaml:"nodes"`
}

// Summary counts what Apply wrote.
type Summary struct {
	Nodes       int
	AdminUsers  int
	SystemUsers int
	Assets      int
}

// Parse decodes and validates a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (Document, error) {
	var doc Document

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Document{}, fmt.Errorf("decode seed: %w", err)
	}

	if err := doc.validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// LoadFile parses the file at path and applies it to w.
func LoadFile(ctx context.Context, path string, w driven.InventoryWriter, logger *slog.Logger) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return Summary{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	summary, err := Apply(ctx, doc, w)
	if err != nil {
		return summary, fmt.Errorf("apply seed file %s: %w", path, err)
	}

	logger.Info("inventory seeded",
		"path", path,
		"nodes", summary.Nodes,
		"admin_users", summary.AdminUsers,
		"system_users", summary.SystemUsers,
		"assets", summary.Assets,
	)
	return summary, nil
}

// Apply upserts the document in dependency order: nodes (parents first),
// admin users, assets, then system users with their attachments.
func Apply(ctx context.Context, doc Document, w driven.InventoryWriter) (Summary, error) {
	var s Summary

	nodes, err := parentsFirst(doc.Nodes)
	if err != nil {
		return s, err
	}
	for _, n := range nodes {
		if err := w.UpsertNode(ctx, model.Node{ID: n.ID, Name: n.Name, ParentID: n.Parent}); err != nil {
			return s, err
		}
		s.Nodes++
	}

	for _, u := range doc.AdminUsers {
		err := w.UpsertAdminUser(ctx, model.AdminUser{
			ID: u.ID, Name: nameOr(u.Name, u.Username), Username: u.Username,
			Password: u.Password, PrivateKey: u.PrivateKey,
		})
		if err != nil {
			return s, err
		}
		s.AdminUsers++
	}

	for _, a := range doc.Assets {
		platform := model.Platform(a.Platform)
		if platform == "" {
			platform = model.PlatformLinux
		}
		err := w.UpsertAsset(ctx, model.Asset{
			ID: a.ID, Address: a.Address, Hostname: nameOr(a.Hostname, a.Address), Port: a.Port,
			Platform: platform, AdminUserID: a.AdminUser, NodeIDs: a.Nodes,
		})
		if err != nil {
			return s, err
		}
		s.Assets++
	}

	for _, u := range doc.SystemUsers {
		err := w.UpsertSystemUser(ctx, model.SystemUser{
			ID: u.ID, Name: nameOr(u.Name, u.Username), Username: u.Username,
			Password: u.Password, PrivateKey: u.PrivateKey, Priority: u.Priority,
			AssetIDs: u.Assets, NodeIDs: u.Nodes,
		})
		if err != nil {
			return s, err
		}
		s.SystemUsers++
	}

	return s, nil
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

var platforms = map[string]bool{
	"": true, "linux": true, "unix": true, "macos": true, "bsd": true, "windows": true, "other": true,
}

func (d Document) validate() error {
	seen := make(map[string]string)
	claim := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%s: id is required", kind)
		}
		if prev, ok := seen[kind+"/"+id]; ok {
			return fmt.Errorf("%s %s: duplicate id (first seen as %s)", kind, id, prev)
		}
		seen[kind+"/"+id] = kind
		return nil
	}

	for _, n := range d.Nodes {
		if err := claim("node", n.ID); err != nil {
			return err
		}
		if n.Name == "" {
			return fmt.Errorf("node %s: name is required", n.ID)
		}
	}
	for _, u := range d.AdminUsers {
		if err := claim("admin user", u.ID); err != nil {
			return err
		}
		if u.Username == "" {
			return fmt.Errorf("admin user %s: username is required", u.ID)
		}
	}
	for _, u := range d.SystemUsers {
		if err := claim("system user", u.ID); err != nil {
			return err
		}
		if u.Username == "" {
			return fmt.Errorf("system user %s: username is required", u.ID)
		}
		if u.Priority < 0 || u.Priority > 100 {
			return fmt.Errorf("system user %s: priority %d out of range 1..100", u.ID, u.Priority)
		}
	}
	for _, a := range d.Assets {
		if err := claim("asset", a.ID); err != nil {
			return err
		}
		if a.Address == "" {
			return fmt.Errorf("asset %s: address is required", a.ID)
		}
		if !platforms[a.Platform] {
			return fmt.Errorf("asset %s: unknown platform %q", a.ID, a.Platform)
		}
		if a.Port < 0 || a.Port > 65535 {
			return fmt.Errorf("asset %s: port %d out of range", a.ID, a.Port)
		}
	}
	return nil
}

// parentsFirst orders nodes so every parent defined in the document precedes
// its children. Parents not in the document are assumed to exist already.
func parentsFirst(nodes []Node) ([]Node, error) {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(nodes))
	ordered := make([]Node, 0, len(nodes))

	var visit func(n Node) error
	visit = func(n Node) error {
		switch state[n.ID] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("node %s: parent cycle", n.ID)
		}
		state[n.ID] = visiting
		if parent, ok := byID[n.Parent]; ok {
			if err := visit(parent); err != nil {
				return err
			}
		}
		state[n.ID] = done
		ordered = append(ordered, n)
		return nil
	}

	for _, n := range nodes {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
