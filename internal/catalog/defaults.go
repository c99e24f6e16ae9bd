package catalog

// DefaultApps returns the built-in entries: common short-form video and
// social feeds, all suggested for blocking.
func DefaultApps() []App {
	return []App{
		{Package: "com.instagram.android", Name: "Instagram", Suggested: true},
		{Package: "com.google.android.youtube", Name: "YouTube", Suggested: true},
		{Package: "app.revanced.android.youtube", Name: "YouTube ReVanced", Suggested: true},
		{Package: "com.facebook.katana", Name: "Facebook", Suggested: true},
		{Package: "com.twitter.android", Name: "X", Suggested: true},
		{Package: "com.snapchat.android", Name: "Snapchat", Suggested: true},
		{Package: "com.zhiliaoapp.musically", Name: "TikTok", Suggested: true},
		{Package: "com.reddit.frontpage", Name: "Reddit", Suggested: true},
	}
}
