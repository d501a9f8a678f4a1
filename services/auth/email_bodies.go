package auth

import "fmt"

func verificationBody(appName, otp, expiry string) string {
	return fmt.Sprintf(
		"<p>Welcome to %s.</p><p>Your verification code is <strong>%s</strong>. It expires in %s.</p>",
		appName, otp, expiry)
}

func twoFactorBody(appName, otp, expiry string) string {
	return fmt.Sprintf(
		"<p>Your %s login code is <strong>%s</strong>. It expires in %s.</p><p>If you did not try to sign in, change your password.</p>",
		appName, otp, expiry)
}

func resetBody(appName, link, expiry string) string {
	return fmt.Sprintf(
		"<p>A password reset was requested for your %s account.</p><p><a href=\"%s\">Reset your password</a> (valid for %s).</p><p>If this wasn't you, ignore this email.</p>",
		appName, link, expiry)
}
