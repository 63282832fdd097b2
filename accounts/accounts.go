package accounts

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"miblog/models"
)

type AccountsModule struct {
	db *gorm.DB
}

func NewAccountsModule(db *gorm.DB) *AccountsModule {
	return &AccountsModule{db: db}
}

func (a *AccountsModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/signup", a.signupPage)
	router.POST("/signup", a.signupPost)
	router.GET("/login", a.loginPage)
	router.POST("/login", a.loginPost)
	router.GET("/logout", a.logout)

	router.GET("/profile/:username", a.profilePage)
	router.GET("/profile/edit", RequireAuth, a.editProfilePage)
	router.POST("/profile/edit", RequireAuth, a.updateProfile)
}

// RequireAuth redirects anonymous requests to the login page and stores the
// session user id in the request context for downstream handlers.
func RequireAuth(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get("user_id")

	if userID == nil {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}

	c.Set("user_id", userID)
	c.Next()
}

// CurrentUser loads the logged-in user for the request, if any.
func CurrentUser(c *gin.Context, db *gorm.DB) (*models.User, bool) {
	session := sessions.Default(c)
	userID := session.Get("user_id")
	if userID == nil {
		return nil, false
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return nil, false
	}
	return &user, true
}

func (a *AccountsModule) signupPage(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get("user_id") != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.HTML(http.StatusOK, "signup.html", gin.H{})
}

func (a *AccountsModule) signupPost(c *gin.Context) {
	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")
	displayName := c.PostForm("display_name")

	formData := gin.H{
		"username":     username,
		"email":        email,
		"display_name": displayName,
	}

	if username == "" || email == "" || password == "" {
		formData["error"] = "Username, email and password are required"
		c.HTML(http.StatusBadRequest, "signup.html", formData)
		return
	}

	var existing models.User
	if err := a.db.Where("username = ?", username).First(&existing).Error; err == nil {
		formData["error"] = "This username is already taken"
		c.HTML(http.StatusBadRequest, "signup.html", formData)
		return
	}
	if err := a.db.Where("email = ?", email).First(&existing).Error; err == nil {
		formData["error"] = "This email is already registered"
		c.HTML(http.StatusBadRequest, "signup.html", formData)
		return
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		formData["error"] = "Error creating account"
		c.HTML(http.StatusInternalServerError, "signup.html", formData)
		return
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
	}

	if err := a.db.Create(&user).Error; err != nil {
		formData["error"] = "Error creating account"
		c.HTML(http.StatusInternalServerError, "signup.html", formData)
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.Redirect(http.StatusFound, "/")
}

func (a *AccountsModule) loginPage(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get("user_id") != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.HTML(http.StatusOK, "login.html", gin.H{})
}

func (a *AccountsModule) loginPost(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	var user models.User
	if err := a.db.Where("username = ?", username).First(&user).Error; err != nil {
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"error":    "Invalid username or password",
			"username": username,
		})
		return
	}

	if !checkPasswordHash(password, user.PasswordHash) {
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"error":    "Invalid username or password",
			"username": username,
		})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.Redirect(http.StatusFound, "/")
}

func (a *AccountsModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.Redirect(http.StatusFound, "/login")
}

func (a *AccountsModule) profilePage(c *gin.Context) {
	var user models.User
	if err := a.db.Where("username = ?", c.Param("username")).First(&user).Error; err != nil {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "User not found"})
		return
	}

	var posts []models.Post
	a.db.Where("author_id = ? AND published = ?", user.ID, true).
		Order("published_at DESC").
		Find(&posts)

	current, loggedIn := CurrentUser(c, a.db)
	isOwner := loggedIn && current.ID == user.ID

	c.HTML(http.StatusOK, "profile.html", gin.H{
		"profile": user,
		"posts":   posts,
		"isOwner": isOwner,
	})
}

func (a *AccountsModule) editProfilePage(c *gin.Context) {
	user, ok := CurrentUser(c, a.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	c.HTML(http.StatusOK, "profile_form.html", gin.H{"profile": user})
}

func (a *AccountsModule) updateProfile(c *gin.Context) {
	user, ok := CurrentUser(c, a.db)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	user.DisplayName = c.PostForm("display_name")
	user.Bio = c.PostForm("bio")

	if err := a.db.Save(user).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "profile_form.html", gin.H{
			"profile": user,
			"error":   "Error saving profile",
		})
		return
	}

	c.Redirect(http.StatusFound, "/profile/"+user.Username)
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
