package explorer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/c32"
	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/fanout"
	"stacks-explorer-api/internal/node"
	"stacks-explorer-api/internal/storage"
)

// Name is a registered name with its core node state and one page of history.
type Name struct {
	*domain.NameRecord
	OwnerSTX string                  `json:"ownerSTX,omitempty"`
	Core     *node.NameInfo          `json:"core,omitempty"`
	History  []*domain.HistoryRecord `json:"history"`
	Page     int                     `json:"page"`
}

// Namespaces lists every namespace. Source is "core-db", or "core-node" when the
// database was unavailable and the node's list was served instead.
type Namespaces struct {
	Namespaces []*domain.Namespace `json:"namespaces"`
	Total      int                 `json:"total"`
	Source     string              `json:"source"`
}

// Namespace list sources.
const (
	SourceCoreDB   = "core-db"
	SourceCoreNode = "core-node"
)

// NameCounts counts names and subdomains.
type NameCounts struct {
	Names      int64 `json:"names"`
	Subdomains int64 `json:"subdomains"`
	Total      int64 `json:"total"`
}

func nameKey(a PageArgs) string {
	return fmt.Sprintf("Name:%s:%d", a.ID, a.Page)
}

func (x *Explorer) newNameSpec() *aggregate.Spec[PageArgs, *Name] {
	return &aggregate.Spec[PageArgs, *Name]{
		Name:   "name",
		Key:    nameKey,
		TTL:    fixedTTL[PageArgs](30 * time.Minute),
		Setter: x.computeName,
	}
}

// Name returns a registered name with one page of its history.
func (x *Explorer) Name(ctx context.Context, name string, page int) (*Name, error) {
	return aggregate.Fetch(ctx, x.engine, x.nameSpec, PageArgs{ID: strings.TrimSpace(name), Page: clampPage(page)})
}

func (x *Explorer) computeName(ctx context.Context, args PageArgs) (*Name, error) {
	if args.ID == "" {
		return nil, fmt.Errorf("%w: empty name", storage.ErrInvalidInput)
	}

	var (
		record  *domain.NameRecord
		history []*domain.HistoryRecord
		info    *node.NameInfo
	)

	g := fanout.NewGroup(ctx, x.logger, nameKey(args))
	g.Required("names.name", func(ctx context.Context) error {
		r, err := x.src.Names.Name(ctx, args.ID)
		if err != nil {
			return upstream(err)
		}
		record = r
		return nil
	})
	g.Optional("history.name", func(ctx context.Context) error {
		h, err := x.src.History.ByName(ctx, args.ID, args.Page, nameHistoryPageSize)
		if err != nil {
			return err
		}
		history = h
		return nil
	})
	g.Optional("core.name", func(ctx context.Context) error {
		i, err := x.src.Core.NameInfo(ctx, args.ID)
		if err != nil {
			return err
		}
		info = i
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if history == nil {
		history = []*domain.HistoryRecord{}
	}
	result := &Name{
		NameRecord: record,
		Core:       info,
		History:    history,
		Page:       args.Page,
	}
	if stx, err := c32.FromBase58(record.Address); err == nil {
		result.OwnerSTX = stx
	}
	return result, nil
}

func (x *Explorer) newNamespacesSpec() *aggregate.Spec[struct{}, *Namespaces] {
	return &aggregate.Spec[struct{}, *Namespaces]{
		Name:   "namespaces",
		Key:    func(struct{}) string { return "Namespaces" },
		TTL:    fixedTTL[struct{}](time.Hour),
		Setter: x.computeNamespaces,
	}
}

// Namespaces returns every namespace.
func (x *Explorer) Namespaces(ctx context.Context) (*Namespaces, error) {
	return aggregate.Fetch(ctx, x.engine, x.namespacesSpec, struct{}{})
}

func (x *Explorer) computeNamespaces(ctx context.Context, _ struct{}) (*Namespaces, error) {
	namespaces, dbErr := x.src.Names.Namespaces(ctx)
	if dbErr == nil {
		if namespaces == nil {
			namespaces = []*domain.Namespace{}
		}
		return &Namespaces{Namespaces: namespaces, Total: len(namespaces), Source: SourceCoreDB}, nil
	}

	x.logger.Printf("Namespaces: core db failed, falling back to core node: %v", dbErr)
	ids, err := x.src.Core.Namespaces(ctx)
	if err != nil {
		return nil, upstream(errors.Join(fmt.Errorf("names.namespaces: %w", dbErr), fmt.Errorf("core.namespaces: %w", err)))
	}
	namespaces = make([]*domain.Namespace, 0, len(ids))
	for _, id := range ids {
		namespaces = append(namespaces, &domain.Namespace{NamespaceID: id, Ready: true})
	}
	return &Namespaces{Namespaces: namespaces, Total: len(namespaces), Source: SourceCoreNode}, nil
}

func (x *Explorer) newNamespaceNamesSpec() *aggregate.Spec[PageArgs, []string] {
	return &aggregate.Spec[PageArgs, []string]{
		Name: "namespace_names",
		Key:  func(a PageArgs) string { return fmt.Sprintf("NamespaceNames:%s:%d", a.ID, a.Page) },
		TTL:  fixedTTL[PageArgs](10 * time.Minute),
		Setter: func(ctx context.Context, a PageArgs) ([]string, error) {
			names, err := x.src.Core.NamespaceNames(ctx, a.ID, a.Page)
			if err != nil {
				return nil, fmt.Errorf("core.namespace_names: %w", upstream(err))
			}
			return names, nil
		},
	}
}

// NamespaceNames returns one page of the names in a namespace, as listed by the core node.
func (x *Explorer) NamespaceNames(ctx context.Context, namespace string, page int) ([]string, error) {
	return aggregate.Fetch(ctx, x.engine, x.namespaceNamesSpec, PageArgs{ID: strings.TrimSpace(namespace), Page: clampPage(page)})
}

func (x *Explorer) newNamesSpec() *aggregate.Spec[int, []string] {
	return &aggregate.Spec[int, []string]{
		Name: "names",
		Key:  func(page int) string { return fmt.Sprintf("Names:%d", page) },
		TTL:  fixedTTL[int](10 * time.Minute),
		Setter: func(ctx context.Context, page int) ([]string, error) {
			names, err := x.src.Core.Names(ctx, page)
			if err != nil {
				return nil, fmt.Errorf("core.names: %w", upstream(err))
			}
			return names, nil
		},
	}
}

// Names returns one page of registered names, as listed by the core node.
func (x *Explorer) Names(ctx context.Context, page int) ([]string, error) {
	return aggregate.Fetch(ctx, x.engine, x.namesSpec, clampPage(page))
}

func (x *Explorer) newNameCountsSpec() *aggregate.Spec[struct{}, *NameCounts] {
	return &aggregate.Spec[struct{}, *NameCounts]{
		Name:   "name_counts",
		Key:    func(struct{}) string { return "NameCounts" },
		TTL:    fixedTTL[struct{}](30 * time.Minute),
		Setter: x.computeNameCounts,
	}
}

// NameCounts returns the number of names and subdomains.
func (x *Explorer) NameCounts(ctx context.Context) (*NameCounts, error) {
	return aggregate.Fetch(ctx, x.engine, x.nameCountsSpec, struct{}{})
}

func (x *Explorer) computeNameCounts(ctx context.Context, _ struct{}) (*NameCounts, error) {
	var counts NameCounts

	g := fanout.NewGroup(ctx, x.logger, "NameCounts")
	g.Required("names.count", func(ctx context.Context) error {
		n, err := x.src.Names.NameCount(ctx)
		if err != nil {
			return upstream(err)
		}
		counts.Names = n
		return nil
	})
	g.Required("names.subdomain_count", func(ctx context.Context) error {
		n, err := x.src.Names.SubdomainCount(ctx)
		if err != nil {
			return upstream(err)
		}
		counts.Subdomains = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts.Total = counts.Names + counts.Subdomains
	return &counts, nil
}
