package scenario

import "github.com/hitoshi/protext/internal/model"

func builtinScenarios() []model.Scenario {
	return []model.Scenario{
		{
			ID:          "architecture-tradeoff-briefing",
			Title:       "Align on an Architecture Trade-off with the CTO",
			Description: "Frame a decision around migrating from a monolith to services while balancing delivery commitments and platform stability.",
			Summary:     "You are preparing a briefing for Priya, your CTO, who needs a clear recommendation on pursuing a service migration. You must articulate the stakes, proposed mitigations, and how the plan impacts delivery velocity.",
			Persona:     model.Persona{Name: "Priya Malhotra", Role: "Chief Technology Officer", AvatarColor: "bg-rose-500"},
			Category:    "Strategic Alignment",
			Difficulty:  model.DifficultyAdvanced,
			Modes:       []model.PracticeMode{model.ModeSimulation, model.ModeCoaching},
			Tags:        []string{"Architecture", "Stakeholders", "Risk"},
			Analytics: model.ScenarioAnalytics{
				CompletionRate:    0.78,
				SessionsCompleted: 4,
				TargetSessions:    6,
				AvgScore:          82,
			},
			Introduction: "I'm looking for a crisp recommendation I can take to the board. Walk me through your stance and how you plan to keep delivery risk in check.",
			ScenarioPrompts: []string{
				"Summarise the migration trade-offs in under two minutes.",
				"Highlight the measurable outcomes you are chasing.",
				"Share how you will keep your staff engineers aligned.",
			},
			CoachingTips: []string{
				"Use numbers to compare the status quo with the proposed change.",
				"Surface risks early, then narrate how your mitigation plan burns them down.",
				"Name the stakeholders affected and how you will keep them informed.",
			},
		},
		{
			ID:          "exec-progress-update",
			Title:       "Deliver a Weekly Progress Update to Executives",
			Description: "Communicate progress, risks, and asks to a cross-functional executive group in a concise written update.",
			Summary:     "Marcus expects a pointed update covering delivery status, key risks, and how product metrics are tracking. Bring him clarity and highlight any executive asks.",
			Persona:     model.Persona{Name: "Marcus Lee", Role: "VP of Engineering", AvatarColor: "bg-cyan-500"},
			Category:    "Status Communication",
			Difficulty:  model.DifficultyIntermediate,
			Modes:       []model.PracticeMode{model.ModeSimulation, model.ModeCoaching},
			Tags:        []string{"Status", "Leadership", "Metrics"},
			Analytics: model.ScenarioAnalytics{
				CompletionRate:    0.64,
				SessionsCompleted: 2,
				TargetSessions:    3,
				AvgScore:          76,
			},
			Introduction: "Give me the signal from the noise. Where are we pacing versus plan, and what do you need me to unblock?",
			ScenarioPrompts: []string{
				"Call out metrics that changed materially from last week.",
				"List top three risks with mitigation owners.",
				"Clarify where you need executive input or support.",
			},
			CoachingTips: []string{
				"Lead with the headline metric and trend so your reader can orient instantly.",
				"Group risks by theme and include the mitigation owner to show accountability.",
				"Finish with explicit asks or next steps to keep momentum.",
			},
		},
		{
			ID:          "incident-coaching-retro",
			Title:       "Coach a Staff Engineer Through an Incident Review",
			Description: "Guide a direct report to extract insights and behaviour changes after a service outage postmortem.",
			Summary:     "Lena is looking for tactical coaching: where should she focus to tighten future incident response, and how can she cascade the learning to the rest of the org?",
			Persona:     model.Persona{Name: "Lena Ortiz", Role: "Director of Platform Engineering", AvatarColor: "bg-amber-500"},
			Category:    "People Leadership",
			Difficulty:  model.DifficultyIntermediate,
			Modes:       []model.PracticeMode{model.ModeCoaching},
			Tags:        []string{"Coaching", "Incident Response", "Growth"},
			Analytics: model.ScenarioAnalytics{
				CompletionRate:    0.83,
				SessionsCompleted: 5,
				TargetSessions:    5,
				AvgScore:          88,
			},
			Introduction: "Help me translate this incident into lasting behaviour so my team responds faster next time.",
			ScenarioPrompts: []string{
				"Identify a concrete behaviour that would have mitigated the incident.",
				"Share a practice Lena can adopt with her team this week.",
				"Coach her on how to socialise the insight without blame.",
			},
			CoachingTips: []string{
				"Anchor praise first, then shift into actionable feedback.",
				"Offer one behaviour focus per message so Lena can act immediately.",
				"Suggest rituals that reinforce the learning (runbooks, drills, postmortem reviews).",
			},
		},
		{
			ID:             "cfo-headcount-negotiation",
			Title:          "Advocate for Headcount with the CFO",
			Description:    "Justify why now is the moment to invest in a platform team, balancing financial constraints with strategic payoff.",
			Summary:        "Amrita will green-light budget only if you quantify ROI and prove the hiring plan protects burn. The conversation hinges on specific financial outcomes.",
			Persona:        model.Persona{Name: "Amrita Patel", Role: "Chief Financial Officer", AvatarColor: "bg-violet-500"},
			Category:       "Executive Influence",
			Difficulty:     model.DifficultyAdvanced,
			Modes:          []model.PracticeMode{model.ModeSimulation},
			Tags:           []string{"Finance", "Planning", "Influence"},
			Locked:         true,
			UnlockCriteria: "Complete three simulation sessions in Strategic Alignment scenarios.",
			Analytics: model.ScenarioAnalytics{
				TargetSessions: 3,
				UnlockMessage:  "Log three architecture or roadmap briefings to demonstrate momentum before tackling budget negotiations.",
			},
			Introduction: "I trust your product instincts, but numbers win budget. Make the long-term payoff tangible and show me where you will pull spend back if needed.",
			ScenarioPrompts: []string{
				"Summarise the business impact of the proposed hires.",
				"Frame optionality if the investment is delayed.",
				"Quantify how the plan affects burn and gross margin.",
			},
			CoachingTips: []string{
				"Pair each qualitative benefit with a financial proof point.",
				"Use scenario planning to show you have contingencies if hiring slows.",
				"Tie the investment to revenue efficiency metrics the CFO already tracks.",
			},
		},
		{
			ID:             "product-strategy-story",
			Title:          "Craft a Narrative for a Strategy Offsite",
			Description:    "Tell the story of how a new developer productivity initiative ladders to company strategy, bringing product and GTM partners along.",
			Summary:        "You are setting the stage for an offsite. Product, design, and sales leaders need to see how the developer experience work ties to revenue.",
			Persona:        model.Persona{Name: "Noah Chen", Role: "Chief Product Officer", AvatarColor: "bg-emerald-500"},
			Category:       "Narrative Building",
			Difficulty:     model.DifficultyBeginner,
			Modes:          []model.PracticeMode{model.ModeSimulation, model.ModeCoaching},
			Tags:           []string{"Storytelling", "Product", "Alignment"},
			Locked:         true,
			UnlockCriteria: "Finish one coaching session focused on executive storytelling.",
			Analytics: model.ScenarioAnalytics{
				TargetSessions: 1,
				UnlockMessage:  "Complete a storytelling coaching session to unlock strategic narrative practice.",
			},
			Introduction: "Paint a picture of why this initiative matters commercially and culturally. I need a story everyone can repeat.",
			ScenarioPrompts: []string{
				"Open with the customer pain you are alleviating.",
				"Connect the initiative to revenue and retention goals.",
				"Invite partners into the story with a clear call to action.",
			},
			CoachingTips: []string{
				"Lean on contrast: describe today versus the world after the initiative lands.",
				"Use vivid verbs and metaphors to keep attention high.",
				"Close with a memorable line that peers can reuse.",
			},
		},
	}
}
