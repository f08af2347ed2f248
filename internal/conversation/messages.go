package conversation

// Reply copy sent by the orchestrator. Free-form text is used when the
// conversation window is open; the template keys map to pre-approved
// templates for the closed-window path.
const (
	msgQualifyingDone = "Thanks, that's everything we need. The artist will review your request and get back to you shortly."
	msgReviewing      = "Your request is with the artist. We'll message you as soon as there's an update."
	msgFollowUp       = "Thanks for your message. A member of the studio will get back to you personally."
	msgTourUnclear    = "Sorry, I didn't catch that. Reply YES if the guest spot dates work for you, or NO to join the waitlist."
	msgWaitlisted     = "No problem, we've added you to the waitlist and will reach out when a slot opens up."
	msgDepositHowTo   = "Great! To secure your booking we ask for a deposit. Use the payment link we sent to complete it."
	msgDepositRetry   = "Your previous payment link expired. We've set up a new one so you can complete the deposit."
	msgAskWindows     = "Deposit received, thank you! When would you like to come in? Send us a day and time that suits you."
	msgMoreWindows    = "Got it. You can send another option, or reply DONE if that's everything."
	msgWindowsDone    = "Perfect, we'll match your availability with the artist's calendar and confirm your slot."
	msgBookingPending = "We're confirming your slot with the artist. You'll hear from us very soon."
	msgResumed        = "Welcome back! Let's pick up where we left off."
	msgRestart        = "Welcome back! Let's start again so we get everything right."

	tmplFollowUp  = "follow_up"
	tmplDeposit   = "deposit_link"
	tmplGeneric   = "studio_update"
	windowDoneKey = "done"
)
