package domain

import "testing"

func TestParseOrderStatus(t *testing.T) {
	cases := map[string]OrderStatus{
		"pending":          OrderStatusPending,
		"Processing":       OrderStatusProcessing,
		"SHIPPED":          OrderStatusShipped,
		"Out For Delivery": OrderStatusOutForDelivery,
		"out_for_delivery": OrderStatusOutForDelivery,
		"out-for-delivery": OrderStatusOutForDelivery,
		" Delivered ":      OrderStatusDelivered,
		"cancelled":        OrderStatusCancelled,
	}

	for input, want := range cases {
		got, err := ParseOrderStatus(input)
		if err != nil {
			t.Errorf("ParseOrderStatus(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseOrderStatus(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestParseOrderStatusRejectsUnknown(t *testing.T) {
	for _, input := range []string{"", "returned", "in transit"} {
		if _, err := ParseOrderStatus(input); err == nil {
			t.Errorf("ParseOrderStatus(%q): expected error", input)
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	cases := map[string]PaymentMethod{
		"cod":              PaymentMethodCOD,
		"Cash-On-Delivery": PaymentMethodCOD,
		"gateway":          PaymentMethodGateway,
		"Razorpay":         PaymentMethodGateway,
	}

	for input, want := range cases {
		got, err := ParsePaymentMethod(input)
		if err != nil {
			t.Errorf("ParsePaymentMethod(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParsePaymentMethod(%q) = %s, want %s", input, got, want)
		}
	}

	if _, err := ParsePaymentMethod("cheque"); err == nil {
		t.Error("expected error for unknown payment method")
	}
}

func TestLastTrackingEntryUsesArrayOrder(t *testing.T) {
	order := Order{}
	if _, ok := order.LastTrackingEntry(); ok {
		t.Fatal("empty history must report no last entry")
	}

	order.TrackingHistory = []TrackingEntry{
		{ID: "trk_a", Location: "A"},
		{ID: "trk_b", Location: "B"},
	}
	last, ok := order.LastTrackingEntry()
	if !ok || last.ID != "trk_b" {
		t.Fatalf("expected trk_b as last entry, got %+v ok=%v", last, ok)
	}
}
