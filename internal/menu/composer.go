package menu

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/observa-edu/observa/internal/shared"
)

// Repository provides pages, categories and ordering persistence.
type Repository interface {
	Pages(ctx context.Context) ([]Page, error)
	Categories(ctx context.Context) ([]Category, error)
	Reorder(ctx context.Context, orders []PageOrder) ([]OrderChange, error)
}

// Authorizer resolves many page paths for one role in a single batch.
type Authorizer interface {
	AllowedPaths(ctx context.Context, role string, paths []string) (map[string]bool, error)
}

// Composer turns the permission matrix into a role's menu.
type Composer struct {
	repo    Repository
	authz   Authorizer
	landing Landing
	logger  *slog.Logger
}

// NewComposer constructs a Composer. A nil landing table uses the built-in one.
func NewComposer(repo Repository, authz Authorizer, landing Landing, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if landing == nil {
		landing = DefaultLanding()
	}
	return &Composer{repo: repo, authz: authz, landing: landing, logger: logger}
}

// Items returns the pages role may reach, ordered for display.
func (c *Composer) Items(ctx context.Context, role string) ([]Item, error) {
	items, _, err := c.compose(ctx, role, false)
	return items, err
}

// Tree returns the menu of role grouped into categories. Categories without visible
// pages are omitted.
func (c *Composer) Tree(ctx context.Context, role string) (Tree, error) {
	items, categories, err := c.compose(ctx, role, true)
	if err != nil {
		return Tree{}, err
	}
	return group(items, categories), nil
}

func (c *Composer) compose(ctx context.Context, role string, withCategories bool) ([]Item, []Category, error) {
	var (
		pages      []Page
		categories []Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pages, err = c.repo.Pages(gctx)
		return err
	})
	if withCategories {
		g.Go(func() error {
			var err error
			categories, err = c.repo.Categories(gctx)
			if errors.Is(err, shared.ErrSchemaMissing) {
				c.logger.Warn("menu categories table missing, menu is ungrouped", slog.Any("error", err))
				categories, err = nil, nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, shared.ErrSchemaMissing) {
			c.logger.Warn("pages table missing, menu is empty", slog.Any("error", err))
			return []Item{}, nil, nil
		}
		return nil, nil, err
	}

	paths := make([]string, 0, len(pages))
	for _, p := range pages {
		paths = append(paths, p.Path)
	}
	allowed, err := c.authz.AllowedPaths(ctx, role, paths)
	if err != nil {
		return nil, nil, err
	}

	items := make([]Item, 0, len(pages))
	for _, p := range pages {
		if !allowed[p.Path] {
			continue
		}
		items = append(items, Item{ID: p.ID, Name: p.Name, Path: p.Path, Icon: p.Icon, Order: p.Order(), CategoryID: p.CategoryID})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].Name < items[j].Name
	})

	// Presentation only: the permission above was checked against the generic path.
	if landing, ok := c.landing.For(role); ok {
		for i := range items {
			if items[i].Path == DashboardPath {
				items[i].Path = landing
			}
		}
	}
	return items, categories, nil
}

func group(items []Item, categories []Category) Tree {
	known := make(map[int64]int, len(categories))
	sorted := append([]Category(nil), categories...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SortOrder != sorted[j].SortOrder {
			return sorted[i].SortOrder < sorted[j].SortOrder
		}
		return sorted[i].Name < sorted[j].Name
	})
	sections := make([]Section, 0, len(sorted))
	for _, cat := range sorted {
		known[cat.ID] = len(sections)
		sections = append(sections, Section{ID: cat.ID, Name: cat.Name, Order: cat.SortOrder, Items: []Item{}})
	}

	tree := Tree{Items: []Item{}}
	for _, item := range items {
		if item.CategoryID != nil {
			if idx, ok := known[*item.CategoryID]; ok {
				sections[idx].Items = append(sections[idx].Items, item)
				continue
			}
		}
		tree.Items = append(tree.Items, item)
	}
	tree.Categories = make([]Section, 0, len(sections))
	for _, s := range sections {
		if len(s.Items) > 0 {
			tree.Categories = append(tree.Categories, s)
		}
	}
	return tree
}
