package combo

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"modloader/core/module"
)

// Request is one transport request covering one or more modules.
type Request struct {
	Package string
	// URL is the full request URL for HTTP transports.
	URL string
	// Base is the package base the paths are relative to.
	Base string
	// Paths are the manifest paths, aligned with Modules.
	Paths    []string
	Modules  []string
	Charset  string
	Lang     string
	Combined bool
}

// Keys returns base/path for each path, for transports that address
// manifests by key or file name.
func (r Request) Keys() []string {
	out := make([]string, len(r.Paths))
	for i, p := range r.Paths {
		out[i] = path.Join(r.Base, p)
	}
	return out
}

// Planner groups module ids into transport requests.
type Planner struct {
	cfg      Config
	packages []Package
	fallback Package
}

// NewPlanner creates a planner. Packages are matched by the longest name
// that is a path prefix of the id.
func NewPlanner(cfg Config) *Planner {
	cfg = cfg.withDefaults()
	p := &Planner{
		cfg: cfg,
		fallback: Package{
			Name:   DefaultPackage,
			Base:   cfg.Base,
			Filter: cfg.Filter,
		},
	}
	for name, pkg := range cfg.Packages {
		if pkg.Name == "" {
			pkg.Name = name
		}
		pkg.Name = strings.Trim(pkg.Name, "/")
		if pkg.Name == DefaultPackage {
			p.fallback = mergePackage(p.fallback, pkg)
			continue
		}
		if pkg.Base == "" {
			pkg.Base = cfg.Base
		}
		p.packages = append(p.packages, pkg)
	}
	sort.Slice(p.packages, func(i, j int) bool {
		if len(p.packages[i].Name) != len(p.packages[j].Name) {
			return len(p.packages[i].Name) > len(p.packages[j].Name)
		}
		return p.packages[i].Name < p.packages[j].Name
	})
	return p
}

func mergePackage(base, over Package) Package {
	base.Name = over.Name
	if over.Base != "" {
		base.Base = over.Base
	}
	if over.Filter != "" {
		base.Filter = over.Filter
	}
	if over.Charset != "" {
		base.Charset = over.Charset
	}
	if over.Tag != "" {
		base.Tag = over.Tag
	}
	if over.Combine != nil {
		base.Combine = over.Combine
	}
	return base
}

// Config returns the effective configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// PackageOf returns the package claiming id.
func (p *Planner) PackageOf(id string) Package {
	id = module.NormalizeID(id)
	for _, pkg := range p.packages {
		if id == pkg.Name || strings.HasPrefix(id, pkg.Name+"/") {
			return pkg
		}
	}
	return p.fallback
}

// Path returns the manifest path of id: id[-filter]suffix.
func (p *Planner) Path(id string) string {
	id = module.NormalizeID(id)
	pkg := p.PackageOf(id)
	if pkg.Filter != "" {
		return id + "-" + pkg.Filter + p.cfg.Suffix
	}
	return id + p.cfg.Suffix
}

// ModuleOf maps a manifest path back to its module id.
func (p *Planner) ModuleOf(file string) (string, bool) {
	file = strings.TrimLeft(path.Clean("/"+filepath.ToSlash(file)), "/")
	if !strings.HasSuffix(file, p.cfg.Suffix) {
		return "", false
	}
	id := strings.TrimSuffix(file, p.cfg.Suffix)
	if pkg := p.PackageOf(id); pkg.Filter != "" {
		trimmed := strings.TrimSuffix(id, "-"+pkg.Filter)
		if trimmed == id {
			return "", false
		}
		id = trimmed
	}
	return id, id != ""
}

func (p *Planner) charset(pkg Package) string {
	if pkg.Charset != "" {
		return pkg.Charset
	}
	return p.cfg.Charset
}

func (p *Planner) tag(pkg Package) string {
	if pkg.Tag != "" {
		return pkg.Tag
	}
	return p.cfg.Tag
}

func (p *Planner) combine(pkg Package) bool {
	if pkg.Combine != nil {
		return *pkg.Combine
	}
	return p.cfg.Combine
}

func withSlash(base string) string {
	return strings.TrimSuffix(base, "/") + "/"
}

func (p *Planner) single(pkg Package, id string) Request {
	file := p.Path(id)
	return Request{
		Package: pkg.Name,
		URL:     p.withTag(pkg, withSlash(pkg.Base)+file),
		Base:    pkg.Base,
		Paths:   []string{file},
		Modules: []string{id},
		Charset: p.charset(pkg),
		Lang:    p.cfg.Lang,
	}
}

func (p *Planner) withTag(pkg Package, url string) string {
	if tag := p.tag(pkg); tag != "" {
		return url + "?t=" + tag
	}
	return url
}

func (p *Planner) comboURL(pkg Package, files []string) string {
	return p.withTag(pkg, withSlash(pkg.Base)+p.cfg.Prefix+strings.Join(files, p.cfg.Sep))
}

// Plan groups ids by package and splits combined requests that would exceed
// the file count or URL length limits. Requests follow the first
// occurrence order of their packages.
func (p *Planner) Plan(ids []string) []Request {
	type group struct {
		pkg Package
		ids []string
	}
	var order []string
	groups := make(map[string]*group)
	for _, id := range module.SplitIDs(ids...) {
		pkg := p.PackageOf(id)
		key := pkg.Name + "|" + p.charset(pkg)
		g, ok := groups[key]
		if !ok {
			g = &group{pkg: pkg}
			groups[key] = g
			order = append(order, key)
		}
		g.ids = append(g.ids, id)
	}

	var out []Request
	for _, key := range order {
		g := groups[key]
		if !p.combine(g.pkg) || len(g.ids) == 1 {
			for _, id := range g.ids {
				out = append(out, p.single(g.pkg, id))
			}
			continue
		}
		out = append(out, p.split(g.pkg, g.ids)...)
	}
	return out
}

func (p *Planner) split(pkg Package, ids []string) []Request {
	var (
		out     []Request
		files   []string
		members []string
	)
	flush := func() {
		switch len(files) {
		case 0:
			return
		case 1:
			out = append(out, p.single(pkg, members[0]))
		default:
			out = append(out, Request{
				Package:  pkg.Name,
				URL:      p.comboURL(pkg, files),
				Base:     pkg.Base,
				Paths:    files,
				Modules:  members,
				Charset:  p.charset(pkg),
				Lang:     p.cfg.Lang,
				Combined: true,
			})
		}
		files, members = nil, nil
	}

	for _, id := range ids {
		file := p.Path(id)
		if len(files) > 0 {
			tooMany := len(files)+1 > p.cfg.MaxFileNum
			tooLong := len(p.comboURL(pkg, append(append([]string(nil), files...), file))) > p.cfg.MaxURILength
			if tooMany || tooLong {
				flush()
			}
		}
		files = append(files, file)
		members = append(members, id)
	}
	flush()
	return out
}
