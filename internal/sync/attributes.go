package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/migasfree/migasfree-backend/internal/domain"
	"github.com/migasfree/migasfree-backend/internal/store"
)

// AttributeBuilder rebuilds a computer's sync_attributes from scratch on
// every upload_computer_info. The pipeline is ordered: basic attributes,
// client-reported formula results, enabled tag properties, then domain and
// attribute-set membership. Every step reads the accumulated set, so the
// derived memberships see everything contributed before them.
type AttributeBuilder struct {
	repos *store.Repositories
}

func NewAttributeBuilder(repos *store.Repositories) *AttributeBuilder {
	return &AttributeBuilder{repos: repos}
}

// basicProperties lists the server-derived prefixes and display names in
// the order they are contributed.
var basicProperties = []struct{ prefix, name string }{
	{domain.PrefixCID, "Computer ID"},
	{domain.PrefixIP, "IP Address"},
	{domain.PrefixPlatform, "Platform"},
	{domain.PrefixProject, "Project"},
	{domain.PrefixUser, "User"},
	{domain.PrefixDescription, "Description"},
}

// Rebuild computes the full sync-attribute set for the computer and
// returns the attribute IDs in ascending order. The caller swaps them in
// through ComputerRepository.ReplaceSyncAttributes so concurrent readers
// never observe a half-built set.
func (b *AttributeBuilder) Rebuild(
	ctx context.Context,
	c *domain.Computer,
	project *domain.Project,
	platform *domain.Platform,
	syncUser string,
	reported map[string]string,
) ([]int64, error) {
	acc := domain.NewAttrSet(domain.AllSystemsAttributeID)

	if err := b.addBasic(ctx, acc, c, project, platform, syncUser); err != nil {
		return nil, err
	}
	if err := b.addClientReported(ctx, acc, reported); err != nil {
		return nil, err
	}
	if err := b.addEnabledTags(ctx, acc, c.TagIDs); err != nil {
		return nil, err
	}
	if err := b.addDomainMembership(ctx, acc); err != nil {
		return nil, err
	}
	if err := b.addSetMembership(ctx, acc); err != nil {
		return nil, err
	}

	return acc.IDs(), nil
}

func (b *AttributeBuilder) add(ctx context.Context, acc domain.AttrSet, prefix, name, value, description string) error {
	if value == "" {
		return nil
	}
	prop, err := b.repos.Properties.GetOrCreate(ctx, prefix, name, domain.SortBasic)
	if err != nil {
		return fmt.Errorf("property %s: %w", prefix, err)
	}
	attr, err := b.repos.Attributes.GetOrCreate(ctx, prop.ID, prefix, value, description)
	if err != nil {
		return fmt.Errorf("attribute %s-%s: %w", prefix, value, err)
	}
	acc.Add(attr.ID)
	return nil
}

func (b *AttributeBuilder) addBasic(
	ctx context.Context,
	acc domain.AttrSet,
	c *domain.Computer,
	project *domain.Project,
	platform *domain.Platform,
	syncUser string,
) error {
	values := map[string]struct{ value, description string }{
		domain.PrefixCID:         {strconv.FormatInt(c.ID, 10), c.Name},
		domain.PrefixIP:          {c.IP, ""},
		domain.PrefixPlatform:    {platform.Name, ""},
		domain.PrefixProject:     {project.Name, ""},
		domain.PrefixUser:        {syncUser, ""},
		domain.PrefixDescription: {c.Comment, ""},
	}
	for _, p := range basicProperties {
		v := values[p.prefix]
		if err := b.add(ctx, acc, p.prefix, p.name, v.value, v.description); err != nil {
			return err
		}
	}
	return nil
}

// addClientReported matches reported formula results against enabled
// client-sort properties and expands each value per the property kind.
func (b *AttributeBuilder) addClientReported(ctx context.Context, acc domain.AttrSet, reported map[string]string) error {
	if len(reported) == 0 {
		return nil
	}
	props, err := b.repos.Properties.EnabledBySort(ctx, domain.SortClient)
	if err != nil {
		return fmt.Errorf("list client properties: %w", err)
	}
	for _, prop := range props {
		raw, ok := reported[prop.Prefix]
		if !ok {
			continue
		}
		for _, value := range domain.ExpandValue(prop.Kind, raw) {
			attr, err := b.repos.Attributes.GetOrCreate(ctx, prop.ID, prop.Prefix, value, "")
			if err != nil {
				return fmt.Errorf("attribute %s-%s: %w", prop.Prefix, value, err)
			}
			acc.Add(attr.ID)
		}
	}
	return nil
}

// addEnabledTags carries assigned tags into the sync set, skipping tags
// whose property has been disabled since assignment.
func (b *AttributeBuilder) addEnabledTags(ctx context.Context, acc domain.AttrSet, tagIDs []int64) error {
	for _, id := range tagIDs {
		attr, err := b.repos.Attributes.ByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return fmt.Errorf("tag attribute %d: %w", id, err)
		}
		prop, err := b.repos.Properties.ByPrefix(ctx, attr.Prefix)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return fmt.Errorf("tag property %s: %w", attr.Prefix, err)
		}
		if prop.Enabled {
			acc.Add(attr.ID)
		}
	}
	return nil
}

func (b *AttributeBuilder) addDomainMembership(ctx context.Context, acc domain.AttrSet) error {
	domains, err := b.repos.Domains.All(ctx)
	if err != nil {
		return fmt.Errorf("list domains: %w", err)
	}
	for _, d := range domains {
		if d.Matches(acc) {
			if err := b.add(ctx, acc, domain.PrefixDomain, "Domain", d.Name, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *AttributeBuilder) addSetMembership(ctx context.Context, acc domain.AttrSet) error {
	sets, err := b.repos.AttributeSets.All(ctx)
	if err != nil {
		return fmt.Errorf("list attribute sets: %w", err)
	}
	for _, s := range sets {
		if !s.Enabled {
			continue
		}
		if s.Matches(acc) {
			if err := b.add(ctx, acc, domain.PrefixSet, "Attribute Sets", s.Name, ""); err != nil {
				return err
			}
		}
	}
	return nil
}
