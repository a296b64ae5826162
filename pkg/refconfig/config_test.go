package refconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReferencePolymorphic(t *testing.T) {
	cfg := NewBuilder().
		Line("r_request").
		Ref("Record_ID", "c_order").
		Ref("c_bpartner_id", "c_bpartner").
		MustBuild()

	refs := cfg.Line("r_request").References()
	require.True(t, refs[0].IsPolymorphic())
	require.False(t, refs[1].IsPolymorphic())
}

func TestEqual(t *testing.T) {
	base := NewBuilder().
		Line("c_invoice").Ref("c_order_id", "c_order").Ref("c_payment_id", "c_payment").
		Line("c_order").
		MustBuild()

	t.Run("case_insensitive", func(t *testing.T) {
		other := NewBuilder().
			Line("C_Order").
			Line("C_Invoice").Ref("C_Payment_ID", "C_Payment").Ref("C_Order_ID", "C_ORDER").
			MustBuild()
		require.True(t, base.Equal(other))
		require.True(t, other.Equal(base))
	})

	t.Run("additional_line", func(t *testing.T) {
		other := NewBuilder().
			Line("c_invoice").Ref("c_order_id", "c_order").Ref("c_payment_id", "c_payment").
			Line("c_order").
			Line("c_payment").
			MustBuild()
		require.False(t, base.Equal(other))
	})

	t.Run("different_reference", func(t *testing.T) {
		other := NewBuilder().
			Line("c_invoice").Ref("c_order_id", "c_order").Ref("c_payment_id", "c_invoice").
			Line("c_order").
			MustBuild()
		require.False(t, base.Equal(other))
	})

	t.Run("reference_equality_includes_owner", func(t *testing.T) {
		a := NewBuilder().Line("c_invoice").Ref("c_order_id", "c_order").MustBuild()
		b := NewBuilder().Line("c_orderline").Ref("c_order_id", "c_order").MustBuild()
		require.False(t, a.Line("c_invoice").References()[0].Equal(b.Line("c_orderline").References()[0]))
	})

	t.Run("nil", func(t *testing.T) {
		var c *Config
		require.False(t, c.Equal(base))
		require.False(t, base.Equal(nil))
	})
}

func TestAugment(t *testing.T) {
	cfg := NewBuilder().Line("c_order").MustBuild()

	t.Run("adds_line_for_unknown_table", func(t *testing.T) {
		augmented, changed, err := cfg.Augment(TableReferenceDescriptor{
			ReferencingTable:  "c_invoice",
			ReferencingColumn: "c_order_id",
			ReferencedTable:   "c_order",
		})
		require.NoError(t, err)
		require.True(t, changed)
		require.False(t, augmented.Equal(cfg))

		require.Len(t, cfg.Lines(), 1, "the original configuration must not change")
		require.Len(t, augmented.Lines(), 2)

		ref := augmented.Line("c_invoice").Reference("C_Order_ID", "C_Order")
		require.NotNil(t, ref)
		require.Same(t, augmented.Line("c_order"), ref.ReferencedLine())
	})

	t.Run("appends_reference_to_existing_line", func(t *testing.T) {
		augmented, changed, err := cfg.Augment(TableReferenceDescriptor{
			ReferencingTable:  "C_ORDER",
			ReferencingColumn: "c_payment_id",
			ReferencedTable:   "c_payment",
		})
		require.NoError(t, err)
		require.True(t, changed)
		require.Len(t, augmented.Lines(), 1)
		require.Len(t, augmented.Line("c_order").References(), 1)
		require.Empty(t, cfg.Line("c_order").References())
	})

	t.Run("idempotent", func(t *testing.T) {
		edge := TableReferenceDescriptor{
			ReferencingTable:  "c_invoice",
			ReferencingColumn: "c_order_id",
			ReferencedTable:   "c_order",
		}
		once, _, err := cfg.Augment(edge)
		require.NoError(t, err)

		twice, changed, err := once.Augment(TableReferenceDescriptor{
			ReferencingTable:  "C_Invoice",
			ReferencingColumn: "C_Order_ID",
			ReferencedTable:   "C_Order",
		})
		require.NoError(t, err)
		require.False(t, changed)
		require.Same(t, once, twice)
	})

	t.Run("keeps_linked_flag", func(t *testing.T) {
		linked := NewBuilder().
			Line("c_invoice").LinkedRef("c_order_id", "c_order").
			Line("c_order").
			MustBuild()
		augmented, _, err := linked.Augment(TableReferenceDescriptor{
			ReferencingTable:  "c_payment",
			ReferencingColumn: "c_invoice_id",
			ReferencedTable:   "c_invoice",
		})
		require.NoError(t, err)

		out, err := Marshal(augmented)
		require.NoError(t, err)
		require.Contains(t, string(out), "linked: true")
	})

	t.Run("invalid_edge", func(t *testing.T) {
		_, _, err := cfg.Augment(TableReferenceDescriptor{ReferencingTable: "c_invoice"})
		require.ErrorIs(t, err, ErrEmptyName)
	})
}

func TestString(t *testing.T) {
	cfg := NewBuilder().
		Line("c_invoice").Ref("c_order_id", "c_order").
		Line("c_order").
		MustBuild()
	require.Equal(t, "c_invoice[c_order_id->c_order] c_order[]", cfg.String())
}
