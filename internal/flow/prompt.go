package flow

import "fmt"

const agentPromptTemplate = "An animated secret agent, equipped with %s, wearing %s hat and %s outfit. This image should be glossy, symmetrical, and high-resolution."

// BuildPrompt turns the weapon, hat and outfit-colour answers into the image prompt.
func BuildPrompt(weapon, hat, outfit string) string {
	return fmt.Sprintf(agentPromptTemplate, weapon, hat, outfit)
}
