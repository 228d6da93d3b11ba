package ai

import "testing"

func TestDefaultHandoffPolicy(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"human operator phrase", "پیشنهاد می‌کنم با اپراتور انسانی صحبت کنید.", true},
		{"insufficient information", "متأسفانه اطلاعات کافی در این مورد ندارم.", true},
		{"not sure", "مطمئن نیستم، اما فکر می‌کنم ساعت ۹ باشد.", true},
		{"dont know unspaced", "نمیدانم این محصول موجود است یا نه.", true},
		{"mixed case latin noise", "I'm NOT SURE — اپراتور انسانی لازم است.", true},
		{"confident answer", "بله، سفارش شما فردا ارسال می‌شود.", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultHandoffPolicy(tc.text); got != tc.want {
				t.Fatalf("DefaultHandoffPolicy(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}
