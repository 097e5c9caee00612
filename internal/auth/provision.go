package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// TenantService manages tenant records and provisioning. Provisioning clones
// the global template role groups into the new tenant in one transaction, so
// a tenant either gets its full starter set or nothing.
type TenantService struct {
	store  Store
	runner *Runner
}

// NewTenantService constructs the tenant service.
func NewTenantService(store Store) (*TenantService, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &TenantService{store: store, runner: NewRunner(store)}, nil
}

// CreateTenant creates a bare tenant record. The slug is normalized to
// lowercase and must be unique.
func (s *TenantService) CreateTenant(ctx context.Context, name, slug string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	slug = strings.ToLower(strings.TrimSpace(slug))
	if name == "" {
		return nil, invalidField("name", "is required")
	}
	if !slugPattern.MatchString(slug) {
		return nil, invalidField("slug", "must be lowercase letters, digits and hyphens")
	}
	unique, err := s.store.Tenants().IsSlugUnique(ctx, slug, "")
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, ErrConflict
	}
	tenant := &Tenant{Name: name, Slug: slug, Active: true}
	err = s.runner.Run(ctx, NewCommand("tenant.create", func(ctx context.Context, uow UnitOfWork) error {
		return uow.Tenants().Create(ctx, tenant)
	}))
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// ProvisionTenant creates a tenant and clones every global template group
// into it, copying each template's role links onto the clone. The whole
// operation is one command: a failure mid-clone leaves no tenant behind.
func (s *TenantService) ProvisionTenant(ctx context.Context, name, slug string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	slug = strings.ToLower(strings.TrimSpace(slug))
	if name == "" {
		return nil, invalidField("name", "is required")
	}
	if !slugPattern.MatchString(slug) {
		return nil, invalidField("slug", "must be lowercase letters, digits and hyphens")
	}
	unique, err := s.store.Tenants().IsSlugUnique(ctx, slug, "")
	if err != nil {
		return nil, err
	}
	if !unique {
		return nil, ErrConflict
	}
	templates, err := s.store.RoleGroups().ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	tenant := &Tenant{Name: name, Slug: slug, Active: true}
	err = s.runner.Run(ctx, NewCommand("tenant.provision", func(ctx context.Context, uow UnitOfWork) error {
		if err := uow.Tenants().Create(ctx, tenant); err != nil {
			return err
		}
		for _, tpl := range templates {
			clone := tpl.Clone(tenant.ID)
			if err := uow.RoleGroups().Create(ctx, clone); err != nil {
				return fmt.Errorf("clone group %q: %w", tpl.Name, err)
			}
			for _, roleID := range tpl.RoleIDs {
				if err := uow.RoleGroups().AssignRole(ctx, clone.ID, roleID); err != nil {
					return fmt.Errorf("link role into %q: %w", clone.Name, err)
				}
			}
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// GetTenant fetches a tenant by id.
func (s *TenantService) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidField("tenantId", "is required")
	}
	return s.store.Tenants().GetByID(ctx, id)
}

// GetTenantBySlug fetches a tenant by its slug.
func (s *TenantService) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, invalidField("slug", "is required")
	}
	return s.store.Tenants().GetBySlug(ctx, slug)
}

// ListTenants returns all tenants.
func (s *TenantService) ListTenants(ctx context.Context) ([]*Tenant, error) {
	return s.store.Tenants().List(ctx)
}

// SetTenantActive toggles a tenant's active flag.
func (s *TenantService) SetTenantActive(ctx context.Context, id string, active bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return invalidField("tenantId", "is required")
	}
	return s.runner.Run(ctx, NewCommand("tenant.set-active", func(ctx context.Context, uow UnitOfWork) error {
		return uow.Tenants().SetActive(ctx, id, active)
	}))
}
