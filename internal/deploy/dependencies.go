package deploy

// Descriptor describes one known deployment dependency: what it is,
// the environment variables it contributes to the prepared deployment,
// and the dependencies it cannot coexist with.
type Descriptor struct {
	Name        string
	Description string
	EnvVars     map[string]string
	Conflicts   []string
}

// Resolution is the outcome of resolving a config's dependency list.
type Resolution struct {
	Resolved    []Descriptor
	Missing     []string
	Conflicting []string
	EnvVars     map[string]string
}

// Catalog maps dependency names to descriptors. The zero value is not
// usable; construct with NewCatalog or BuiltinCatalog.
type Catalog struct {
	entries map[string]Descriptor
}

// NewCatalog builds a catalog from the given descriptors.
func NewCatalog(descriptors ...Descriptor) *Catalog {
	c := &Catalog{entries: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		c.entries[d.Name] = d
	}
	return c
}

// BuiltinCatalog returns the catalog of dependencies the bundled
// providers understand.
func BuiltinCatalog() *Catalog {
	return NewCatalog(
		Descriptor{
			Name:        "node",
			Description: "Node.js runtime",
			EnvVars:     map[string]string{"NODE_ENV": "production"},
		},
		Descriptor{
			Name:        "postgres",
			Description: "PostgreSQL database",
			EnvVars:     map[string]string{"DATABASE_URL": "postgres://localhost:5432/app"},
		},
		Descriptor{
			Name:        "redis",
			Description: "Redis cache",
			EnvVars:     map[string]string{"REDIS_URL": "redis://localhost:6379"},
		},
		Descriptor{
			Name:        "sqlite",
			Description: "embedded SQLite database",
			EnvVars:     map[string]string{"DATABASE_URL": "file:app.db"},
			Conflicts:   []string{"postgres"},
		},
		Descriptor{
			Name:        "docker",
			Description: "container runtime",
		},
		Descriptor{
			Name:        "kubectl",
			Description: "Kubernetes CLI access",
		},
	)
}

// Resolve splits the requested names into resolved descriptors, unknown
// names, and pairwise conflicts, and merges the env vars of everything
// that resolved. Requested order is preserved in Resolved.
func (c *Catalog) Resolve(names []string) Resolution {
	res := Resolution{EnvVars: make(map[string]string)}
	requested := make(map[string]bool, len(names))

	for _, name := range names {
		if requested[name] {
			continue
		}
		requested[name] = true

		d, ok := c.entries[name]
		if !ok {
			res.Missing = append(res.Missing, name)
			continue
		}
		res.Resolved = append(res.Resolved, d)
		for k, v := range d.EnvVars {
			res.EnvVars[k] = v
		}
	}

	for _, d := range res.Resolved {
		for _, other := range d.Conflicts {
			if requested[other] {
				res.Conflicting = append(res.Conflicting, d.Name+"/"+other)
			}
		}
	}
	return res
}
