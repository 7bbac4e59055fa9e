package calendar

import "time"

// storeBededagLast is the last year Store Bededag was a public holiday.
const storeBededagLast = 2023

// DanishPublicHolidays are the Danish public holidays, including the
// Easter-relative ones.
func DanishPublicHolidays() []Rule {
	return []Rule{
		Fixed(time.January, 1, "Nytårsdag", false),
		EasterOffset(-3, "Skærtorsdag", false),
		EasterOffset(-2, "Langfredag", false),
		EasterOffset(0, "Påskedag", false),
		EasterOffset(1, "2. påskedag", false),
		Until(storeBededagLast, EasterOffset(26, "Store bededag", false)),
		EasterOffset(39, "Kristi himmelfartsdag", false),
		EasterOffset(49, "Pinsedag", false),
		EasterOffset(50, "2. pinsedag", false),
		Fixed(time.December, 25, "Juledag", false),
		Fixed(time.December, 26, "2. juledag", false),
	}
}

// DanishBankClosures are days where Danish banks are closed even though they
// are not public holidays.
func DanishBankClosures() []Rule {
	return []Rule{
		EasterOffset(40, "Banklukkedag", true), // day after Ascension Day
		Fixed(time.June, 5, "Grundlovsdag", true),
		Fixed(time.December, 24, "Juleaftensdag", true),
		Fixed(time.December, 31, "Nytårsaftensdag", true),
	}
}

// NewDanishBank returns the Danish bank calendar, optionally extended with
// extra rules such as one-off closures from configuration.
func NewDanishBank(extra ...Rule) *Calendar {
	rules := append(DanishPublicHolidays(), DanishBankClosures()...)
	rules = append(rules, extra...)
	return New(rules...)
}
