package home

import (
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvitesCommandModeratorGate(t *testing.T) {
	require.True(t, invitesCommand.DefaultMemberPermissions.OK)
	perms := invitesCommand.DefaultMemberPermissions.Value
	require.NotNil(t, perms)

	assert.True(t, perms.Has(discord.PermissionManageGuild),
		"the command surface belongs to the Manage Guild tier")
	assert.False(t, perms.Has(discord.PermissionAdministrator),
		"Administrator is enforced per subcommand, not on the whole command")

	assert.Equal(t,
		[]discord.InteractionContextType{discord.InteractionContextTypeGuild},
		invitesCommand.Contexts)
}

func TestMemberIsAdmin(t *testing.T) {
	assert.False(t, memberIsAdmin(nil))

	moderator := &discord.ResolvedMember{Permissions: discord.PermissionManageGuild}
	assert.False(t, memberIsAdmin(moderator), "Manage Guild alone must not pass the admin gate")

	admin := &discord.ResolvedMember{Permissions: discord.PermissionAdministrator}
	assert.True(t, memberIsAdmin(admin))
}
