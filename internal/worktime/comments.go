package worktime

import "math/rand/v2"

// OvertimeComments is the pool shown when the overtime judgment fires.
// Entries repeat on purpose: repeated lines come up more often.
var OvertimeComments = []string{
	"Whoa! You working overtime or saving the world? 🦸‍♂️",
	"You deserve a raise… or at least a coffee! ☕",
	"Are you sure you're not stuck in a time loop? ⏳😂",
	"Somebody give this person a vacation! 🏖️",
	"Workaholic mode: ACTIVATED! 🚀",
	"Does your chair have a glue trap? Time to escape! 😆",
	"You're making the rest of us look bad! Slow down! 😜",
	"Enough work for today! Your keyboard needs a break too! ⌨️💨",
	"Boss Level Unlocked: Ultimate Workaholic! 🏆",
	"Whoa! You working overtime or saving the world? 🦸‍♂️",
	"You deserve a raise… or at least a coffee! ☕",
	"Are you sure you're not stuck in a time loop? ⏳😂",
	"Somebody give this person a vacation! 🏖️",
	"Workaholic mode: ACTIVATED! 🚀",
	"Does your chair have a glue trap? Time to escape! 😆",
	"You're making the rest of us look bad! Slow down! 😜",
	"Enough work for today! Your keyboard needs a break too! ⌨️💨",
	"Boss Level Unlocked: Ultimate Workaholic! 🏆",
	"Code, sleep, repeat? More like work, work, work! 😅",
	"At this rate, you’ll own the company soon! 🏢😂",
	"Hey, even robots take breaks! 🤖💤",
	"Your keyboard is overheating! 🚨🔥",
	"Workaholic alert! Someone needs to unplug you! 🛑😂",
	"Are you farming XP in real life? 🎮🤣",
	"I see you’re training for the Work Marathon! 🏃‍♂️💨",
	"Go home! Your desk misses you, but your bed misses you more! 🛏️💤",
	"If work were a sport, you'd be MVP! 🏅😂",
	"You’re setting a new office record! 🏆👏",
	"Your manager just fainted seeing your hours! 😂",
	"Time to file a missing person report… for your social life! 📢",
	"Careful! HR might start charging you rent for that chair! 😆",
	"I hope your company gives loyalty points for this! 💰",
	"Work-life balance? Never heard of it! 😂",
	"Someone get this person an **extra** lunch break! 🍔🍟",
}

// CommentPicker returns one overtime comment.
type CommentPicker func() string

// RandomComment picks uniformly from OvertimeComments.
func RandomComment() string {
	return OvertimeComments[rand.IntN(len(OvertimeComments))]
}

// PickerFrom builds a CommentPicker over a caller-supplied index source,
// e.g. a seeded *rand.Rand's IntN.
func PickerFrom(intn func(n int) int) CommentPicker {
	return func() string {
		return OvertimeComments[intn(len(OvertimeComments))]
	}
}
