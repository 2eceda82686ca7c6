package content

import "fmt"

// Prompt is the situation players respond to in a round.
type Prompt struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

var promptText = map[Theme][]string{
	ThemeClassic: {
		"When the group chat goes silent after your message",
		"Me pretending to understand the assignment",
		"The face you make when the Wi-Fi drops mid-call",
		"Monday morning, first coffee still loading",
		"When someone says \"quick question\" at 4:59pm",
		"My reaction when the food finally arrives",
		"Trying to leave a party without saying goodbye",
		"When you hear your own voice on a recording",
		"The last brain cell during an exam",
		"When the plan was to stay in but the friends call",
		"Finding money in last winter's coat",
		"When autocorrect ruins the apology text",
	},
	ThemeAnimals: {
		"The cat when you move it off the keyboard",
		"A dog hearing the word \"walk\" from another room",
		"When the goldfish sees you holding the food flakes",
		"A pigeon that has seen too much",
		"The family pet meeting the new baby",
		"When the bird outside wakes you at 5am",
		"A hamster at 3am running for no reason",
		"When the vet says \"this won't hurt\"",
		"The squirrel that just buried its last nut",
		"When the horse is done with the photo shoot",
	},
	ThemeMovies: {
		"The villain realising the plan has a plot hole",
		"The sidekick who survives every sequel",
		"When the trailer spoiled the whole film",
		"The audience when the post-credits scene starts",
		"That one character who says \"let's split up\"",
		"The hero walking away from the explosion",
		"When the remake announcement drops",
		"The director reading the test screening notes",
		"Popcorn gone before the opening credits end",
		"When someone talks during the twist",
	},
	ThemeSports: {
		"The referee checking the replay for the tenth time",
		"Fans when the home team scores in overtime",
		"The goalkeeper after a penalty goes in",
		"When the coach says \"one more lap\"",
		"The bench player finally getting minutes",
		"When the fantasy team loses by one point",
		"The mascot on a forty degree day",
		"Stretching before the race that lasted ten seconds",
		"The commentator running out of adjectives",
		"Celebrating before crossing the finish line",
	},
	ThemeFood: {
		"When the recipe says \"season to taste\"",
		"The pizza after you said \"just one slice\"",
		"Opening the fridge for the fifth time hoping for change",
		"When the waiter brings someone else's order",
		"The chef tasting the sauce on live TV",
		"Realising the avocado was ripe yesterday",
		"When the takeaway forgets the fries",
		"The toast that landed butter side down",
		"Grocery shopping while hungry",
		"When someone asks for a bite of your dessert",
	},
}

// Prompts returns the full prompt list for a theme in a stable order.
func Prompts(theme Theme) []Prompt {
	texts, ok := promptText[theme]
	if !ok {
		texts = promptText[DefaultTheme]
		theme = DefaultTheme
	}
	out := make([]Prompt, len(texts))
	for i, text := range texts {
		out[i] = Prompt{ID: fmt.Sprintf("%s/%02d", theme, i+1), Text: text}
	}
	return out
}
