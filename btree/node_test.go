package btree

import "testing"

func TestNode_RoundTrip(t *testing.T) {
	n := NewNode(kindLeaf, 4, 4, 128)
	if err := n.SetKey(0, []byte("abcd")); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if err := n.SetValue(0, []byte("wxyz")); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	n.SetNumKeys(1)

	decoded, err := DecodeNode(n.Bytes(), 4, 4, 128)
	if err != nil {
		t.Fatalf("DecodeNode: %v", err)
	}
	if decoded.Kind() != kindLeaf {
		t.Errorf("Kind() = %d, want kindLeaf", decoded.Kind())
	}
	if decoded.NumKeys() != 1 {
		t.Errorf("NumKeys() = %d, want 1", decoded.NumKeys())
	}
	k, err := decoded.Key(0)
	if err != nil || string(k) != "abcd" {
		t.Errorf("Key(0) = %q, %v, want \"abcd\", nil", k, err)
	}
	v, err := decoded.Value(0)
	if err != nil || string(v) != "wxyz" {
		t.Errorf("Value(0) = %q, %v, want \"wxyz\", nil", v, err)
	}
}

func TestNode_DecodeRejectsIllegalKind(t *testing.T) {
	n := NewNode(kindLeaf, 4, 4, 128)
	data := n.Bytes()
	data[offNodeType] = 0xFF
	if _, err := DecodeNode(data, 4, 4, 128); err == nil {
		t.Errorf("DecodeNode with illegal nodetype: want error, got nil")
	}
}

func TestNode_DecodeRejectsWrongSize(t *testing.T) {
	if _, err := DecodeNode(make([]byte, 100), 4, 4, 128); err == nil {
		t.Errorf("DecodeNode with mismatched block size: want error, got nil")
	}
}

func TestNode_KeyOutOfRange(t *testing.T) {
	n := NewNode(kindLeaf, 4, 4, 128)
	max := n.MaxLeafSlots()
	if _, err := n.Key(max); err == nil {
		t.Errorf("Key(%d) on a %d-slot leaf: want error, got nil", max, max)
	}
	if _, err := n.Key(-1); err == nil {
		t.Errorf("Key(-1): want error, got nil")
	}
}

func TestNode_SetKeyWrongLength(t *testing.T) {
	n := NewNode(kindLeaf, 4, 4, 128)
	if err := n.SetKey(0, []byte("toolong")); err == nil {
		t.Errorf("SetKey with wrong-length key: want error, got nil")
	}
}

func TestNode_ValueAccessOnInterior(t *testing.T) {
	n := NewNode(kindInterior, 4, 4, 128)
	if _, err := n.Value(0); err == nil {
		t.Errorf("Value() on an interior node: want error, got nil")
	}
}

func TestNode_ChildAccessOnLeaf(t *testing.T) {
	n := NewNode(kindLeaf, 4, 4, 128)
	if _, err := n.Child(0); err == nil {
		t.Errorf("Child() on a leaf node: want error, got nil")
	}
}

func TestNode_InteriorChildRoundTrip(t *testing.T) {
	n := NewNode(kindInterior, 4, 4, 128)
	if err := n.SetChild(0, 7); err != nil {
		t.Fatalf("SetChild: %v", err)
	}
	if err := n.SetChild(1, 9); err != nil {
		t.Fatalf("SetChild: %v", err)
	}
	got, err := n.Child(0)
	if err != nil || got != 7 {
		t.Errorf("Child(0) = %d, %v, want 7, nil", got, err)
	}
	got, err = n.Child(1)
	if err != nil || got != 9 {
		t.Errorf("Child(1) = %d, %v, want 9, nil", got, err)
	}
}

func TestFillThreshold(t *testing.T) {
	cases := []struct{ maxSlots, want int }{
		{3, 2},
		{6, 4},
		{12, 8},
		{0, 0},
	}
	for _, c := range cases {
		if got := fillThreshold(c.maxSlots); got != c.want {
			t.Errorf("fillThreshold(%d) = %d, want %d", c.maxSlots, got, c.want)
		}
	}
}
