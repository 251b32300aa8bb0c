package billing

import "fmt"

// buildWelcomeEmail returns the email content sent after a completed
// checkout. purchaseType is "subscription" or "onetime".
func buildWelcomeEmail(name, planName, purchaseType, baseURL string) (subject, html, plainText string) {
	if purchaseType == "subscription" {
		subject = fmt.Sprintf("Welcome to MissFit Coaching: your %s plan is active", planName)

		html = fmt.Sprintf(`
		<html>
		<body>
			<h2>Welcome to MissFit Coaching!</h2>
			<p>Hi %s,</p>
			<p>Your <strong>%s</strong> coaching subscription is now active. Your coach will reach out shortly to schedule your first session.</p>
			<p>Your card will be billed monthly; you can cancel at any time by replying to this email.</p>
			<p><a href="%s" style="background-color: #4CAF50; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Visit MissFit Coaching</a></p>
			<p>Thanks,<br>The MissFit Coaching Team</p>
		</body>
		</html>
	`, name, planName, baseURL)

		plainText = fmt.Sprintf(`Hi %s,

Your %s coaching subscription is now active. Your coach will reach out shortly to schedule your first session.

Your card will be billed monthly; you can cancel at any time by replying to this email.

Visit us: %s

Thanks,
The MissFit Coaching Team
`, name, planName, baseURL)

		return
	}

	subject = fmt.Sprintf("Your MissFit %s purchase is confirmed", planName)

	html = fmt.Sprintf(`
		<html>
		<body>
			<h2>Thank you for your purchase!</h2>
			<p>Hi %s,</p>
			<p>Your payment for the <strong>%s</strong> package has been received. Your coach will reach out shortly to get you started.</p>
			<p><a href="%s" style="background-color: #4CAF50; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Visit MissFit Coaching</a></p>
			<p>Thanks,<br>The MissFit Coaching Team</p>
		</body>
		</html>
	`, name, planName, baseURL)

	plainText = fmt.Sprintf(`Hi %s,

Your payment for the %s package has been received. Your coach will reach out shortly to get you started.

Visit us: %s

Thanks,
The MissFit Coaching Team
`, name, planName, baseURL)

	return
}

// buildPaymentFailedEmail returns the email content sent when a payment
// attempt fails.
func buildPaymentFailedEmail(name, baseURL string) (subject, html, plainText string) {
	subject = "There was a problem with your MissFit payment"

	html = fmt.Sprintf(`
		<html>
		<body>
			<h2>Payment Failed</h2>
			<p>Hi %s,</p>
			<p>We couldn't process your recent payment. Please check your payment method and try again.</p>
			<p>If the problem persists, reply to this email and we'll sort it out together.</p>
			<p><a href="%s" style="background-color: #2196F3; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Try Again</a></p>
			<p>Thanks,<br>The MissFit Coaching Team</p>
		</body>
		</html>
	`, name, baseURL)

	plainText = fmt.Sprintf(`Hi %s,

We couldn't process your recent payment. Please check your payment method and try again.

If the problem persists, reply to this email and we'll sort it out together.

Try again: %s

Thanks,
The MissFit Coaching Team
`, name, baseURL)

	return
}
