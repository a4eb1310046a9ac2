package mmi

import "strings"

// TextPrompt asks for an MMI judgement of a post's text.
func TextPrompt(epicenter, text string) string {
	var b strings.Builder
	b.WriteString("You are a seismic expert. The epicenter of this earthquake is located at ")
	b.WriteString(epicenter)
	b.WriteString(". Please assess the following text posted on Twitter for earthquake-related damage based on the Modified Mercalli Intensity (MMI) Scale: ")
	b.WriteString(text)
	b.WriteString(". \n")
	b.WriteString("Return the result in this JSON format: {'MMI': 'your judgment', 'location': 'your identification', 'reason': 'your reasoning'}.\n")
	b.WriteString("1. If the text does not describe any ")
	b.WriteString(epicenter)
	b.WriteString(" earthquake-caused damage, return 'None' for MMI.\n")
	b.WriteString("2. If the damage location is not mentioned in the text, return 'None' for location.\n")
	b.WriteString("3. Provide your reasoning based on the details mentioned in the text.\n")
	return b.String()
}

// ImagePrompt asks for an MMI judgement of an image.
func ImagePrompt() string {
	return "You are a seismic expert. Please assess the following image posted on Twitter for earthquake-related damage based on the Modified Mercalli Intensity (MMI) Scale.\n" +
		"Return the result in this JSON format: {'MMI': 'your judgement', 'reason': 'your reasoning'}.\n" +
		"1. If the image does not describe any earthquake-caused damage, return 'None' for MMI.\n" +
		"2. Provide your reasoning based on the details described in the image.\n"
}
