package encounter

import (
	"testing"
	"time"

	"github.com/homevisit/homevisit/internal/domain/registry"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }

func TestStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPlanned, StatusArrived, true},
		{StatusArrived, StatusTriaged, true},
		{StatusArrived, StatusInProgress, true},
		{StatusTriaged, StatusInProgress, true},
		{StatusInProgress, StatusOnLeave, true},
		{StatusOnLeave, StatusInProgress, true},
		{StatusOnLeave, StatusFinished, true},
		{StatusInProgress, StatusFinished, true},
		{StatusUnknown, StatusInProgress, true},

		{StatusPlanned, StatusFinished, false},
		{StatusTriaged, StatusArrived, false},
		{StatusFinished, StatusInProgress, false},
		{StatusCancelled, StatusArrived, false},
		{StatusEnteredInError, StatusPlanned, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("%s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestStatus_EnteredInErrorFromAnyLiveState(t *testing.T) {
	for _, s := range []Status{StatusPlanned, StatusArrived, StatusTriaged, StatusInProgress, StatusOnLeave, StatusUnknown} {
		if !s.CanTransition(StatusEnteredInError) {
			t.Errorf("%s -> entered-in-error refused", s)
		}
	}
	for _, s := range []Status{StatusFinished, StatusCancelled, StatusEnteredInError} {
		if s.CanTransition(StatusEnteredInError) {
			t.Errorf("terminal %s -> entered-in-error allowed", s)
		}
	}
}

func TestDeliveryStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to DeliveryStatus
		want     bool
	}{
		{DeliveryPlanned, DeliveryInProgress, true},
		{DeliveryInProgress, DeliveryArrived, true},
		{DeliveryArrived, DeliveryFinished, true},
		{DeliveryPlanned, DeliveryCancelled, true},
		{DeliveryInProgress, DeliveryCancelled, true},

		{DeliveryPlanned, DeliveryArrived, false},
		{DeliveryPlanned, DeliveryFinished, false},
		{DeliveryFinished, DeliveryCancelled, false},
		{DeliveryCancelled, DeliveryInProgress, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("%s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestObservation_ValidateValues(t *testing.T) {
	now := time.Now()

	t.Run("one value passes", func(t *testing.T) {
		o := &Observation{
			Measured:      "body temperature",
			ValueQuantity: &registry.Quantity{Value: 36.7, Unit: "Cel"},
		}
		if err := o.ValidateValues(); err != nil {
			t.Errorf("ValidateValues: %v", err)
		}
	})

	t.Run("no value fails", func(t *testing.T) {
		o := &Observation{Measured: "body temperature"}
		if err := o.ValidateValues(); err == nil {
			t.Error("observation without a value accepted")
		}
	})

	t.Run("two values fail", func(t *testing.T) {
		o := &Observation{
			Measured:      "body temperature",
			ValueQuantity: &registry.Quantity{Value: 36.7, Unit: "Cel"},
			ValueString:   strPtr("normal"),
		}
		if err := o.ValidateValues(); err == nil {
			t.Error("observation with two values accepted")
		}
	})

	t.Run("missing measured fails", func(t *testing.T) {
		o := &Observation{ValueBoolean: boolPtr(true)}
		if err := o.ValidateValues(); err == nil {
			t.Error("observation without measured accepted")
		}
	})

	t.Run("component rule applies", func(t *testing.T) {
		o := &Observation{
			Measured:    "blood pressure",
			ValueString: strPtr("panel"),
			Components: []Component{
				{Measured: "systolic", ValueQuantity: &registry.Quantity{Value: 120, Unit: "mm[Hg]"}},
				{Measured: "diastolic"},
			},
		}
		if err := o.ValidateValues(); err == nil {
			t.Error("component without a value accepted")
		}

		o.Components[1].ValueQuantity = &registry.Quantity{Value: 80, Unit: "mm[Hg]"}
		if err := o.ValidateValues(); err != nil {
			t.Errorf("ValidateValues: %v", err)
		}

		o.Components[1].ValueDateTime = timePtr(now)
		if err := o.ValidateValues(); err == nil {
			t.Error("component with two values accepted")
		}
	})
}
