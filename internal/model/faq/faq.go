package faq

// Entry is one canned question/answer pair matched against user messages
// before the LLM is consulted.
type Entry struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Seed provides the default Persian support FAQ entries.
func Seed() []Entry {
	return []Entry{
		{
			ID:       "working-hours",
			Question: "ساعت کاری پشتیبانی شما چیست",
			Answer:   "پشتیبانی ما همه‌روزه از ساعت ۹ صبح تا ۹ شب در خدمت شماست.",
		},
		{
			ID:       "order-tracking",
			Question: "چطور می‌توانم سفارش خود را پیگیری کنم",
			Answer:   "برای پیگیری سفارش، کد سفارش خود را در بخش «پیگیری سفارش» سایت وارد کنید.",
		},
		{
			ID:       "return-policy",
			Question: "شرایط بازگشت کالا چگونه است",
			Answer:   "تا ۷ روز پس از دریافت کالا می‌توانید درخواست بازگشت ثبت کنید.",
		},
		{
			ID:       "payment-methods",
			Question: "چه روش های پرداخت را قبول می کنید",
			Answer:   "پرداخت آنلاین با تمام کارت‌های عضو شتاب و پرداخت در محل امکان‌پذیر است.",
		},
	}
}
