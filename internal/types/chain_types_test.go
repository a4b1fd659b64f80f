package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    ContractRole
		wantErr bool
	}{
		{in: "troveAuction", want: RoleAuction},
		{in: "troveCollection", want: RoleCollection},
		{in: "troveToken", want: RoleToken},
		{in: "troveStake", want: RoleStake},
		{in: "TroveAuction", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRolesIsACopy(t *testing.T) {
	roles := Roles()
	roles[0] = "troveVault"
	assert.True(t, RoleAuction.Valid())
	assert.Equal(t, RoleAuction, Roles()[0])
}

func TestChainIDString(t *testing.T) {
	assert.Equal(t, "84532", ChainBaseSepolia.String())
	assert.Equal(t, "31337", ChainAnvil.String())
}
