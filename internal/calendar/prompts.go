package calendar

import (
	"math/rand/v2"
	"strings"
)

var icebreakers = []string{
	"What is one thing you learned recently that surprised you?",
	"If you could master any skill overnight, what would it be?",
	"What project are you most proud of and why?",
	"Which book, talk or course changed the way you think?",
	"What does a great learning session look like for you?",
	"What is a question you have been wanting to ask an expert?",
	"Describe a problem you solved in an unusual way.",
	"What would you like to be able to do after this session?",
	"Who has been the most influential mentor in your life?",
	"What is something you are curious about right now?",
}

// Icebreakers returns a copy of the prompt set.
func Icebreakers() []string {
	out := make([]string, len(icebreakers))
	copy(out, icebreakers)
	return out
}

// PickIcebreaker selects a prompt uniformly using intn (rand.IntN when nil).
func PickIcebreaker(intn func(int) int) string {
	if intn == nil {
		intn = rand.IntN
	}
	return icebreakers[intn(len(icebreakers))]
}

const fallbackHost = "https://meet.google.com/"

// FallbackMeetingLink synthesises a link shaped like
// https://meet.google.com/abc-def-ghi from three lowercase trigraphs.
func FallbackMeetingLink(intn func(int) int) string {
	if intn == nil {
		intn = rand.IntN
	}
	var b strings.Builder
	b.WriteString(fallbackHost)
	for group := 0; group < 3; group++ {
		if group > 0 {
			b.WriteByte('-')
		}
		for i := 0; i < 3; i++ {
			b.WriteByte(byte('a' + intn(26)))
		}
	}
	return b.String()
}
