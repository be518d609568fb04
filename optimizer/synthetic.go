package optimizer

import "github.com/paretolabs/modelopt/replay"

// SyntheticConversations returns template test conversations for a use
// case, the cold-start path when a user has too little real history.
func SyntheticConversations(useCase string) []replay.Conversation {
	if convs, ok := syntheticTemplates[useCase]; ok {
		return convs
	}
	return syntheticTemplates["general"]
}

var syntheticTemplates = map[string][]replay.Conversation{
	"coding": {
		replay.UserConversation("Write a Python function to sort a list"),
		replay.UserConversation("Explain the difference between list and tuple in Python"),
		replay.UserConversation("Debug this code: for i in range(10) print(i)"),
	},
	"reasoning": {
		replay.UserConversation("If A is greater than B, and B is greater than C, what can we conclude?"),
		replay.UserConversation("Analyze the pros and cons of remote work"),
	},
	"general": {
		replay.UserConversation("What is the capital of France?"),
		replay.UserConversation("Explain quantum computing in simple terms"),
		replay.UserConversation("What are the benefits of regular exercise?"),
	},
}
