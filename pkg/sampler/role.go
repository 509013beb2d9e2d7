package sampler

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Sumatoshi-tech/sampler/pkg/contentmodel"
	"github.com/Sumatoshi-tech/sampler/pkg/report"
)

const (
	userRolesTable  = "user__roles"
	userRolesColumn = "roles_target_id"

	providerNode     = "node"
	providerTaxonomy = "taxonomy"
)

var editingPermission = regexp.MustCompile(`^(create|delete|edit|revert)`)

// RoleCollector reports user roles with member counts and whether each role
// may edit content or taxonomy terms.
type RoleCollector struct {
	deps Deps
}

// NewRoleCollector creates a RoleCollector.
func NewRoleCollector(deps Deps) Collector {
	return &RoleCollector{deps: deps}
}

// Descriptor returns the collector metadata.
func (c *RoleCollector) Descriptor() Descriptor {
	return Descriptor{
		ID:          IDRole,
		Description: "User roles with member counts and editing capabilities",
		Kind:        KindSampler,
	}
}

// Applicable accepts only the user entity type.
func (c *RoleCollector) Applicable(et contentmodel.EntityType) bool {
	return et.ID == contentmodel.EntityTypeUser
}

// Key returns the report slot.
func (c *RoleCollector) Key(contentmodel.EntityType) string {
	return KeyRole
}

// Collect builds {role: {instances, is_node_editing, is_taxonomy_editing}}
// for every authenticated role.
func (c *RoleCollector) Collect(ctx context.Context, _ contentmodel.EntityType) (any, error) {
	out := report.NewNode()

	for _, role := range c.deps.Model.Roles() {
		if role.ID == contentmodel.RoleAnonymous {
			continue
		}

		pseudonym := c.deps.Mapper.Role(role.ID)

		instances, err := c.deps.Store.CountWhere(ctx, userRolesTable, userRolesColumn, role.ID)
		if err != nil {
			return nil, fmt.Errorf("count role %s: %w", role.ID, err)
		}

		flags, err := c.editing(role.ID)
		if err != nil {
			return nil, err
		}

		out.Set(pseudonym, report.GroupRecord{Instances: instances, Editing: &flags}.Node())
	}

	return out, nil
}

func (c *RoleCollector) editing(roleID string) (report.EditingFlags, error) {
	perms, err := c.deps.Model.PermissionsForRole(roleID)
	if err != nil {
		return report.EditingFlags{}, fmt.Errorf("permissions of %s: %w", roleID, err)
	}

	var flags report.EditingFlags

	for _, perm := range perms {
		if !editingPermission.MatchString(perm.Name) {
			continue
		}

		switch perm.Provider {
		case providerNode:
			flags.Node = true
		case providerTaxonomy:
			flags.Taxonomy = true
		}
	}

	return flags, nil
}
